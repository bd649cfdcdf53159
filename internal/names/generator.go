// Package names generates human-readable node names for pfbatch daemons.
//
// Names follow the Docker "adjective-noun" style and draw on a freight and
// harbor vocabulary, matching what a daemon does all day: collecting small
// items and shipping them in loads. A daemon started without --name picks
// one at random, e.g. "steady-barge" or "tidal-wharf".
package names

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var adjectives = []string{
	// Pace
	"swift", "steady", "brisk", "patient", "eager", "nimble", "rapid",
	"calm", "hasty", "tireless", "prompt", "measured", "punctual",

	// Sea and weather
	"tidal", "coastal", "misty", "stormy", "briny", "northern", "southern",
	"windward", "leeward", "foggy", "gusty", "salty", "sunlit",

	// Character
	"bold", "brave", "clever", "diligent", "faithful", "gallant", "hardy",
	"honest", "jolly", "keen", "loyal", "merry", "quiet", "sturdy",
	"thrifty", "trusty", "vigilant", "wise", "zealous",

	// Cargo
	"laden", "packed", "bundled", "sealed", "stacked", "bonded", "ballasted",
	"chartered", "manifest", "stowed",
}

var nouns = []string{
	// Vessels
	"barge", "ferry", "tug", "schooner", "clipper", "freighter", "junk",
	"ketch", "lighter", "sloop", "trawler", "cutter", "dhow", "galleon",

	// Harbor
	"wharf", "quay", "dock", "pier", "jetty", "harbor", "lock", "mooring",
	"berth", "slipway", "breakwater", "lighthouse", "buoy", "beacon",

	// Cargo handling
	"crane", "pallet", "crate", "bale", "hopper", "conveyor", "manifest",
	"ledger", "tally", "winch", "hoist", "forklift", "container", "parcel",

	// Seabirds
	"albatross", "gannet", "petrel", "puffin", "tern", "cormorant", "gull",
	"heron", "pelican", "skua",
}

// Generate returns a random "adjective-noun" name.
func Generate() string {
	adjective := adjectives[randomIndex(len(adjectives))]
	noun := nouns[randomIndex(len(nouns))]
	return fmt.Sprintf("%s-%s", adjective, noun)
}

func randomIndex(max int) int {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}

// GenerateMany returns count names, unique as long as the vocabulary allows
// it. Each slot retries up to 100 times before accepting a duplicate.
func GenerateMany(count int) []string {
	if count <= 0 {
		return []string{}
	}

	names := make([]string, count)
	used := make(map[string]bool)

	for i := 0; i < count; i++ {
		var name string
		for attempts := 0; ; attempts++ {
			name = Generate()
			if !used[name] || attempts > 100 {
				break
			}
		}
		used[name] = true
		names[i] = name
	}

	return names
}
