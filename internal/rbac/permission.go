package rbac

// Permission is a named capability gated by role.
type Permission string

const (
	PermViewAllProjects     Permission = "viewAllProjects"
	PermCreateProjects      Permission = "createProjects"
	PermManageProjects      Permission = "manageProjects"
	PermManageAllTasks      Permission = "manageAllTasks"
	PermCommentOnTasks      Permission = "commentOnTasks"
	PermUploadFiles         Permission = "uploadFiles"
	PermApproveDeliverables Permission = "approveDeliverables"
	PermManageUsers         Permission = "manageUsers"
	PermManageOrganizations Permission = "manageOrganizations"
	PermManageFeatureFlags  Permission = "manageFeatureFlags"
	PermViewActivity        Permission = "viewActivity"
)

// Permissions lists every declared permission key.
var Permissions = []Permission{
	PermViewAllProjects,
	PermCreateProjects,
	PermManageProjects,
	PermManageAllTasks,
	PermCommentOnTasks,
	PermUploadFiles,
	PermApproveDeliverables,
	PermManageUsers,
	PermManageOrganizations,
	PermManageFeatureFlags,
	PermViewActivity,
}
