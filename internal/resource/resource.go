package resource

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies the type of hosted resource.
type Kind string

const (
	KindBot     Kind = "bot"
	KindWebsite Kind = "website"
)

// Kinds lists all supported resource kinds in a stable order.
func Kinds() []Kind { return []Kind{KindBot, KindWebsite} }

// Status is the durable desired status of a resource. Bots use
// stopped/running, websites use inactive/active; error is shared.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusRunning  Status = "running"
	StatusError    Status = "error"
	StatusInactive Status = "inactive"
	StatusActive   Status = "active"
)

// ActiveStatus returns the "should be up" status variant for the kind.
func (k Kind) ActiveStatus() Status {
	if k == KindWebsite {
		return StatusActive
	}
	return StatusRunning
}

// StoppedStatus returns the "should be down" status variant for the kind.
func (k Kind) StoppedStatus() Status {
	if k == KindWebsite {
		return StatusInactive
	}
	return StatusStopped
}

func (k Kind) Valid() bool { return k == KindBot || k == KindWebsite }

// Record is the durable lifecycle row for a resource. DesiredStatus is the
// only field the engine writes; the rest is owned by the CRUD layer.
type Record struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	DesiredStatus Status    `json:"desired_status"`
	FilePath      string    `json:"file_path"`
	Config        string    `json:"config"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Spec carries everything the controller needs to bring a resource up.
type Spec struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	FilePath string `json:"file_path"`
	Config   string `json:"config"`
}

// SpecOf derives a start spec from a stored record.
func SpecOf(rec Record) Spec {
	return Spec{ID: rec.ID, Kind: rec.Kind, FilePath: rec.FilePath, Config: rec.Config}
}

func (s Spec) Validate() error {
	if s.ID == "" {
		return errors.New("resource id required")
	}
	if !SafeID(s.ID) {
		return fmt.Errorf("invalid resource id %q: allowed [A-Za-z0-9._-], no path separators", s.ID)
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("unknown resource kind %q", s.Kind)
	}
	return nil
}

// SafeID reports whether id is safe to use in file names and URLs.
func SafeID(id string) bool {
	if id == "" || strings.Contains(id, "..") {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
