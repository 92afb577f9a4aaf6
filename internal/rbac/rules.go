package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"course:view",
		"course:enroll",
		"test:view",
		"test:take",
		"attempt:submit",
		"attempt:view-own",
		"announcement:view",
		"event:view",
		"user:change_password",
	},
	"instructor": {
		"course:view",
		"course:create",
		"test:view",
		"test:create",
		"attempt:view-all",
		"announcement:view",
		"announcement:create",
		"event:view",
		"event:create",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
