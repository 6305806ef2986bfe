package models

// RosterStudent is a student placed in the administrative hierarchy.
type RosterStudent struct {
	StudentID string `db:"student_id" json:"student_id"`
	Gender    string `db:"gender" json:"gender"`
	ClassID   string `db:"class_id" json:"class_id"`
	SchoolID  string `db:"school_id" json:"school_id"`
	Group     int    `db:"group_no" json:"group"`
	District  string `db:"district" json:"district"`
}

// RosterSchool is one school with its group and district placement.
type RosterSchool struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Group    int    `db:"group_no" json:"group"`
	District string `db:"district" json:"district"`
}

// RosterClass is one class of a school.
type RosterClass struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	Name     string `db:"name" json:"name"`
}
