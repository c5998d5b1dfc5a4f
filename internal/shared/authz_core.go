package shared

// Administrative permissions.
const (
	PermUsersView = "user_view"
	PermUsersEdit = "user_edit"

	PermRolesView = "role_view"
	PermRolesEdit = "role_edit"

	PermPermissionsView = "permission_view"
	PermPermissionsEdit = "permission_edit"

	// PermAdmin is the umbrella permission seeded for the admin role.
	PermAdmin = "admin"
)

// Marketplace permissions.
const (
	PermItemCreate     = "item_create"
	PermItemFreeCreate = "item_free_create"
	PermItemReject     = "item_reject"
	PermItemDelete     = "item_delete"
	PermItemAssign     = "item_assign"

	PermInterestCreate = "interest_create"
	PermInterestView   = "interest_view"
	PermInterestAssign = "interest_assign"

	PermProfileViewRequest = "profile_view_request"
)

// CoreScopes lists the administrative permissions.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermRolesView,
		PermRolesEdit,
		PermPermissionsView,
		PermPermissionsEdit,
	}
}

// MarketplaceScopes lists permissions used by item, interest and profile flows.
func MarketplaceScopes() []string {
	return []string{
		PermItemCreate,
		PermItemFreeCreate,
		PermItemReject,
		PermItemDelete,
		PermItemAssign,
		PermInterestCreate,
		PermInterestView,
		PermInterestAssign,
		PermProfileViewRequest,
	}
}
