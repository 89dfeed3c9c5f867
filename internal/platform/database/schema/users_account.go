package schema

// UserAccountTable represents the 'accounts' table
type UserAccountTable struct {
	Table        string
	ID           string
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
	Role         string
	Actions      string
	IsVerified   string
	CreatedAt    string
	UpdatedAt    string
	DeletedAt    string
}

// UserAccount is the schema definition for accounts
var UserAccount = UserAccountTable{
	Table:        "accounts",
	ID:           "id",
	Username:     "username",
	Email:        "email",
	PasswordHash: "password_hash",
	DisplayName:  "display_name",
	Role:         "role",
	Actions:      "actions",
	IsVerified:   "is_verified",
	CreatedAt:    "created_at",
	UpdatedAt:    "updated_at",
	DeletedAt:    "deleted_at",
}
