package archive

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Conversation is one archived coordinator run.
type Conversation struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uint           `json:"user_id" gorm:"index"`
	CastName  string         `json:"cast_name"`
	Rounds    int            `json:"rounds"`
	Freshness string         `json:"freshness"`
	Status    string         `json:"status" gorm:"size:16;index"`
	Error     string         `json:"error,omitempty"`
	Speakers  datatypes.JSON `json:"speakers"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
	Turns     []Turn         `json:"turns,omitempty" gorm:"foreignKey:ConversationID"`
}

func (c *Conversation) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Turn is one history entry; Index 0 is the seed line.
type Turn struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ConversationID uuid.UUID `json:"conversation_id" gorm:"type:uuid;index"`
	Index          int       `json:"index" gorm:"column:turn_index"`
	SpeakerID      string    `json:"speaker_id" gorm:"size:64"`
	SpeakerName    string    `json:"speaker_name"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// BrochureRecord is a generated brochure kept for later download.
type BrochureRecord struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    uint           `json:"user_id" gorm:"index"`
	Company   string         `json:"company"`
	URL       string         `json:"url"`
	Markdown  string         `json:"markdown"`
	Links     datatypes.JSON `json:"links"`
	CreatedAt time.Time      `json:"createdAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Models lists every table the archive needs migrated.
func Models() []interface{} {
	return []interface{}{&Conversation{}, &Turn{}, &BrochureRecord{}}
}
