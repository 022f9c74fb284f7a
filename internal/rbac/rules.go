package rbac

// Default policy. Students interact with published exams and their own
// results; teachers manage content and see results for their own exams;
// admins can do everything, including user management.
var RolePermissions = map[string][]string{
	"student": {
		"exam:list-available",
		"exam:take",
		"session:interact",
		"submission:view-own",
		"profile:update",
	},
	"teacher": {
		"question:manage",
		"exam:manage",
		"submission:view-all",
		"performance:view",
		"profile:update",
	},
	"admin": {
		"*", // everything
	},
}
