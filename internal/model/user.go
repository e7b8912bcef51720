package model

type UserRole string

const (
	RoleBuyer           UserRole = "buyer"
	RoleSellerPersonal  UserRole = "seller_personal"
	RoleSellerRetail    UserRole = "seller_retail"
	RoleSellerWholesale UserRole = "seller_wholesale"
	RoleAdmin           UserRole = "admin"
)

type User struct {
	BaseModel
	Email string   `db:"email" json:"email"`
	Name  string   `db:"name" json:"name"`
	Role  UserRole `db:"role" json:"role"`
}

func (r UserRole) IsSeller() bool {
	switch r {
	case RoleSellerPersonal, RoleSellerRetail, RoleSellerWholesale:
		return true
	}
	return false
}
