package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/concave-dev/pfbatch/internal/gossip"
	"github.com/gin-gonic/gin"
)

// Membership lists the daemons of the fleet.
type Membership interface {
	Members() map[string]*gossip.Member
}

// FleetMember is a fleet member in API responses
type FleetMember struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Address  string            `json:"address"`
	APIAddr  string            `json:"apiAddr,omitempty"`
	Status   string            `json:"status"`
	Tags     map[string]string `json:"tags"`
	LastSeen time.Time         `json:"lastSeen"`
}

// HandleMembers returns every known fleet member. A daemon running without
// gossip answers an empty list.
func HandleMembers(m Membership) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiMembers := []FleetMember{}
		if m != nil {
			for _, member := range m.Members() {
				apiMembers = append(apiMembers, FleetMember{
					ID:       member.ID,
					Name:     member.Name,
					Address:  fmt.Sprintf("%s:%d", member.Addr.String(), member.Port),
					APIAddr:  member.APIAddr,
					Status:   member.Status.String(),
					Tags:     member.Tags,
					LastSeen: member.LastSeen,
				})
			}
		}

		// Sort by name for consistent output
		sort.Slice(apiMembers, func(i, j int) bool {
			return apiMembers[i].Name < apiMembers[j].Name
		})

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   apiMembers,
			"count":  len(apiMembers),
		})
	}
}
