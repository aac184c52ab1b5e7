package constant

// Roles are the five positions of a standard team, in draft order.
// RoleAdjacency below follows the same ordering.
const (
	RoleTop     = "TOP"
	RoleJungle  = "JUNGLE"
	RoleMid     = "MID"
	RoleBottom  = "BOTTOM"
	RoleSupport = "SUPPORT"
)

var Roles = []string{RoleTop, RoleJungle, RoleMid, RoleBottom, RoleSupport}

// RoleAdjacency weights how much a pair of roles is expected to interact
// in-game. Used when averaging pairwise synergy for recommendation scoring.
var RoleAdjacency = map[string]map[string]float64{
	RoleTop:     {RoleJungle: 1.0, RoleMid: 0.6, RoleBottom: 0.2, RoleSupport: 0.3},
	RoleJungle:  {RoleTop: 1.0, RoleMid: 1.0, RoleBottom: 0.6, RoleSupport: 0.8},
	RoleMid:     {RoleTop: 0.6, RoleJungle: 1.0, RoleBottom: 0.5, RoleSupport: 0.6},
	RoleBottom:  {RoleTop: 0.2, RoleJungle: 0.6, RoleMid: 0.5, RoleSupport: 1.0},
	RoleSupport: {RoleTop: 0.3, RoleJungle: 0.8, RoleMid: 0.6, RoleBottom: 1.0},
}

func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}
