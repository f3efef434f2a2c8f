package identity

// RoleModerator marks accounts allowed to remove other users' comments.
const RoleModerator = "moderator"

// HasRole reports whether roles contains role.
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
