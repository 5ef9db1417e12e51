package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/emberfall/tickets/internal/model"
)

// roleFile is the on-disk shape of the role seed:
//
//	groups:
//	  staff:
//	    members:
//	      - 5f9c0e9e-...
//	    permissions:
//	      - ticket.claim
type roleFile struct {
	Groups map[string]struct {
		Members     []string `yaml:"members"`
		Permissions []string `yaml:"permissions"`
	} `yaml:"groups"`
}

// LoadRoles reads the role seed file. Member entries must be UUIDs;
// a malformed entry fails the whole load rather than silently dropping
// an assignment.
func LoadRoles(path string) ([]model.Role, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roles file: %w", err)
	}

	var rf roleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse roles file: %w", err)
	}

	roles := make([]model.Role, 0, len(rf.Groups))
	for name, group := range rf.Groups {
		role := model.Role{Name: name, Permissions: group.Permissions}
		for _, m := range group.Members {
			id, err := uuid.Parse(m)
			if err != nil {
				return nil, fmt.Errorf("role %q has invalid member %q: %w", name, m, err)
			}
			role.Members = append(role.Members, id)
		}
		roles = append(roles, role)
	}

	// Map iteration order is random; keep seeding deterministic.
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}
