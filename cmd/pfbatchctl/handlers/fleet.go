package handlers

import (
	"fmt"

	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/client"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/config"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/display"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/utils"
	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/spf13/cobra"
)

// HandleMembers handles `members`
func HandleMembers(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()

	fetchAndDisplay := func() error {
		logging.Info("Fetching fleet members from API server: %s", config.Global.APIAddr)

		members, err := client.CreateAPIClient().GetMembers()
		if err != nil {
			return err
		}

		filtered := filterMembers(members, config.Fleet.Status)
		display.DisplayMembers(filtered)
		if !config.Fleet.Watch {
			logging.Success("Successfully retrieved %d fleet members (%d after filtering)", len(members), len(filtered))
		}
		return nil
	}

	return utils.RunWithWatch(fetchAndDisplay, config.Fleet.Watch)
}

func filterMembers(members []client.Member, status string) []client.Member {
	if status == "" {
		return members
	}

	var filtered []client.Member
	for _, member := range members {
		if member.Status == status {
			filtered = append(filtered, member)
		}
	}
	return filtered
}

// HandleResources handles `resources [node]`. Without a node it lists every
// daemon; with one it shows that daemon, accepting a name, a full id or a
// unique id prefix.
func HandleResources(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()

	if len(args) == 1 {
		return handleNodeResources(args[0])
	}

	fetchAndDisplay := func() error {
		logging.Info("Fetching fleet resources from API server: %s", config.Global.APIAddr)

		res, err := client.CreateAPIClient().GetResources(config.Fleet.Sort, config.Fleet.NoCache)
		if err != nil {
			return err
		}

		display.DisplayResources(res)
		if !config.Fleet.Watch {
			logging.Success("Successfully retrieved resources of %d nodes", len(res))
		}
		return nil
	}

	return utils.RunWithWatch(fetchAndDisplay, config.Fleet.Watch)
}

func handleNodeResources(ref string) error {
	apiClient := client.CreateAPIClient()

	nodeID := ref
	if members, err := apiClient.GetMembers(); err == nil {
		memberLikes := make([]utils.MemberLike, len(members))
		for i, m := range members {
			memberLikes[i] = m
		}
		nodeID, err = utils.ResolveNodeIdentifier(memberLikes, ref)
		if err != nil {
			return err
		}
	} else {
		logging.Warn("Could not list members to resolve %s: %v", ref, err)
	}

	fetchAndDisplay := func() error {
		logging.Info("Fetching resources of node %s from API server: %s", nodeID, config.Global.APIAddr)

		res, err := apiClient.GetNodeResources(nodeID)
		if err != nil {
			return fmt.Errorf("failed to get node resources: %w", err)
		}

		display.DisplayNodeResources(res)
		return nil
	}

	return utils.RunWithWatch(fetchAndDisplay, config.Fleet.Watch)
}
