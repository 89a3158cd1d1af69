// internal/model/catalog.go
package model

type Driver struct {
	ID        string  `db:"id" json:"id"`
	CompanyID string  `db:"company_id" json:"company_id"`
	Name      string  `db:"name" json:"name"`
	Weight    float64 `db:"weight" json:"weight"`
	Active    bool    `db:"active" json:"active"`
}

type ItemStatus string

const (
	ItemStatusActive  ItemStatus = "active"
	ItemStatusHidden  ItemStatus = "hidden"
	ItemStatusDraft   ItemStatus = "draft"
	ItemStatusTrashed ItemStatus = "trashed"
)

type Item struct {
	ID       string     `db:"id" json:"id"`
	DriverID string     `db:"driver_id" json:"driver_id"`
	Text     string     `db:"text" json:"text"`
	Status   ItemStatus `db:"status" json:"status"`
}

type Company struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	AdminEmail  string `db:"admin_email" json:"admin_email"`
	InviteQuota int    `db:"invite_quota" json:"invite_quota"`
}

// EligibleItems keeps active items owned by one of the active drivers.
func EligibleItems(drivers []Driver, items []Item) []Item {
	active := make(map[string]bool, len(drivers))
	for _, d := range drivers {
		if d.Active {
			active[d.ID] = true
		}
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Status == ItemStatusActive && active[it.DriverID] {
			out = append(out, it)
		}
	}
	return out
}
