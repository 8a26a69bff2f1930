package rbac

import "time"

// Role is a named role assignable to users. DisplayName is what the
// capability resolver maps into a capability bucket.
type Role struct {
	ID          int64
	DisplayName string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
