package rbac

// RolePermissions is the default policy. Managers may look at any user's
// quiz view; students only their own.
var RolePermissions = map[string][]string{
	"student": {PermView, PermSave, PermSubmit},
	"manager": {"headlessquiz:*", PermSave, PermSubmit},
	"admin":   {"*"},
}
