package domain

type UserRole string

const (
	UserRoleReader UserRole = "READER"
	UserRoleStaff  UserRole = "STAFF"
	UserRoleAdmin  UserRole = "ADMIN"
)

type User struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Role            UserRole `json:"role"`
	ViolationPoints int      `json:"violationPoints"`
	CreatedOn       string   `json:"createdOn"`
}

func (u *User) IsReader() bool { return u.Role == UserRoleReader }
