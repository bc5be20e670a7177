package validate

import "github.com/tordrt/leetstore/internal/db"

// Action is what a reconciliation run did to a table or object.
type Action string

const (
	ActionNone      Action = "none"
	ActionCreated   Action = "created"
	ActionAltered   Action = "altered"
	ActionRecreated Action = "recreated"
)

// TableReport is the outcome for one declared table.
type TableReport struct {
	Table  string
	Issue  *Issue
	Action Action
	// Drifted is true when the table differed from its declaration at the
	// start of the run.
	Drifted        bool
	Reasons        []string
	DroppedColumns []string
}

// Report summarizes one run over a database file. It is only returned when
// the run succeeded.
type Report struct {
	Path            string
	EngineVersion   string
	DeclaredVersion string
	StoredVersion   string
	// Quarantined is where an unreadable database file was moved, if any.
	Quarantined string

	Tables               []TableReport
	Objects              []ObjectReport
	ForeignKeyViolations []db.ForeignKeyViolation
}

// Changed reports whether the run modified the database.
func (r *Report) Changed() bool {
	if r.Quarantined != "" {
		return true
	}
	for _, t := range r.Tables {
		if t.Action != ActionNone {
			return true
		}
	}
	for _, o := range r.Objects {
		if o.Action != ActionNone {
			return true
		}
	}
	return false
}

// Drift reports whether the inspected database differs from its declaration.
// Extra columns count only when dropExtra is set. A database that was never
// stamped with a version only drifts through its tables and objects.
func (r *Report) Drift(dropExtra bool) bool {
	if r.VersionDrift() {
		return true
	}
	for _, t := range r.Tables {
		if t.Issue != nil && !t.Issue.Empty(dropExtra) {
			return true
		}
	}
	for _, o := range r.Objects {
		if o.Status != ObjectOK {
			return true
		}
	}
	return false
}

// VersionDrift reports whether a stored schema version exists and differs
// from the declared one.
func (r *Report) VersionDrift() bool {
	return r.DeclaredVersion != "" && r.StoredVersion != "" && r.StoredVersion != r.DeclaredVersion
}
