package domain

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool { return s == StatusActive || s == StatusInactive }

// Toggled flips active and inactive.
func (s Status) Toggled() Status {
	if s == StatusActive {
		return StatusInactive
	}
	return StatusActive
}

type Source string

const (
	SourceManual Source = "manual"
	SourceAPI    Source = "api"
	SourceImport Source = "import"
)

func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceAPI, SourceImport:
		return true
	}
	return false
}

type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionEnable  Action = "enable"
	ActionDisable Action = "disable"
	ActionRestore Action = "restore"
	ActionImport  Action = "import"
)

// ToggleAction is the audit action recorded when a status flips to s.
func ToggleAction(s Status) Action {
	if s == StatusActive {
		return ActionEnable
	}
	return ActionDisable
}

type EntityType string

const (
	EntityCategory EntityType = "category"
	EntityApp      EntityType = "app"
	EntityUser     EntityType = "user"
)
