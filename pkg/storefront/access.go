package storefront

import "fmt"

// Capability checks. Every command that needs one calls it once, before
// touching either store.

func requireIdentity(id Identity) error {
	if id.IsZero() {
		return fmt.Errorf("%w: sign-in required", ErrForbidden)
	}
	return nil
}

func requireRole(id Identity, op string, roles ...Role) error {
	if err := requireIdentity(id); err != nil {
		return err
	}
	for _, r := range roles {
		if id.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: %s requires role %v, caller has %q", ErrForbidden, op, roles, id.Role)
}

// canUpload allows admins and employees to add gallery assets.
func canUpload(id Identity) error {
	return requireRole(id, "upload", RoleAdmin, RoleEmployee)
}

// canViewGallery allows admins and employees to browse gallery records.
func canViewGallery(id Identity, op string) error {
	return requireRole(id, op, RoleAdmin, RoleEmployee)
}

// canModifyAsset allows admins and the uploader to rename, retag or delete.
func canModifyAsset(id Identity, asset *AssetRecord) error {
	if err := requireIdentity(id); err != nil {
		return err
	}
	if id.Role == RoleAdmin || asset.OwnerIdentity == id.Subject {
		return nil
	}
	return fmt.Errorf("%w: asset %s belongs to another user", ErrForbidden, asset.ID)
}

// canManageCatalog allows only admins to change products.
func canManageCatalog(id Identity, op string) error {
	return requireRole(id, op, RoleAdmin)
}

// canManageUsers allows only admins to list users and change roles.
func canManageUsers(id Identity, op string) error {
	return requireRole(id, op, RoleAdmin)
}

// ownsLine allows a cart line to be changed only by its user.
func ownsLine(id Identity, line *CartLine) error {
	if err := requireIdentity(id); err != nil {
		return err
	}
	if line.UserIdentity != id.Subject {
		return fmt.Errorf("%w: cart line %s belongs to another user", ErrForbidden, line.ID)
	}
	return nil
}
