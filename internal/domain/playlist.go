package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	MaxItems           = 50
	MinDurationSeconds = 5
	MaxDurationSeconds = 60

	MaxUploadBytes = 10 << 20
	MaxTextLength  = 500
)

// AllowedImageTypes lists the media types accepted by image uploads.
var AllowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
}

type ItemKind string

const (
	KindImage ItemKind = "image"
	KindText  ItemKind = "text"
)

func ParseItemKind(s string) (ItemKind, error) {
	switch ItemKind(s) {
	case KindImage, KindText:
		return ItemKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Direction moves an item one rank toward the start (Up) or end (Down).
type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
)

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return DirectionUp, nil
	case "down":
		return DirectionDown, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

func (d Direction) String() string {
	if d == DirectionUp {
		return "up"
	}
	return "down"
}

// PlaylistItem is one unit of display content. Payload is carried verbatim
// by ordering and broadcast; only the edges decode it.
type PlaylistItem struct {
	ID              uuid.UUID       `json:"id"`
	Kind            ItemKind        `json:"kind"`
	Payload         json.RawMessage `json:"payload"`
	DurationSeconds int             `json:"durationSeconds"`
	OrderIndex      int             `json:"orderIndex"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ImagePayload decodes the payload of an image item.
func (p *PlaylistItem) ImagePayload() (*ImagePayload, error) {
	if p.Kind != KindImage {
		return nil, fmt.Errorf("%w: item %s is %s", ErrInvalidKind, p.ID, p.Kind)
	}
	var img ImagePayload
	if err := json.Unmarshal(p.Payload, &img); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return &img, nil
}

type ImagePayload struct {
	URL         string `json:"url" validate:"required"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize" validate:"gte=0,lte=10485760"`
	MimeType    string `json:"mimeType" validate:"required,oneof=image/jpeg image/jpg image/png"`
	StoragePath string `json:"storagePath" validate:"required"`
}

type TextPayload struct {
	Text            string `json:"text" validate:"required,max=500"`
	FontFamily      string `json:"fontFamily,omitempty"`
	FontSize        int    `json:"fontSize,omitempty" validate:"omitempty,gte=8,lte=400"`
	TextColor       string `json:"textColor,omitempty" validate:"omitempty,hexcolor"`
	BackgroundColor string `json:"backgroundColor,omitempty" validate:"omitempty,hexcolor"`
	Position        string `json:"position,omitempty" validate:"omitempty,oneof=top-left top-center top-right middle-left middle-center middle-right bottom-left bottom-center bottom-right"`
	TextAlign       string `json:"textAlign,omitempty" validate:"omitempty,oneof=left center right"`
	FontWeight      string `json:"fontWeight,omitempty"`
	Italic          bool   `json:"italic,omitempty"`
}

// NewItem describes an item to create. A nil OrderIndex appends at the end.
type NewItem struct {
	Kind            ItemKind
	Payload         json.RawMessage
	DurationSeconds int
	OrderIndex      *int
}

// ItemPatch carries partial content changes. Kind and order are not editable here.
type ItemPatch struct {
	DurationSeconds *int
	Payload         json.RawMessage
}

func (p ItemPatch) Empty() bool {
	return p.DurationSeconds == nil && len(p.Payload) == 0
}

// OrderSlot pins an item to the order index it was read with.
type OrderSlot struct {
	ID         uuid.UUID
	OrderIndex int
}

func ValidDuration(seconds int) bool {
	return seconds >= MinDurationSeconds && seconds <= MaxDurationSeconds
}

// PlaylistRepository is the durable Content Store.
type PlaylistRepository interface {
	ListOrdered(ctx context.Context) ([]PlaylistItem, error)
	Get(ctx context.Context, id uuid.UUID) (*PlaylistItem, error)
	Count(ctx context.Context) (int, error)
	// Create enforces MaxItems and assigns max+1 when OrderIndex is nil.
	Create(ctx context.Context, item NewItem) (*PlaylistItem, error)
	Update(ctx context.Context, id uuid.UUID, patch ItemPatch) (*PlaylistItem, error)
	// Delete removes the record and returns it as it was.
	Delete(ctx context.Context, id uuid.UUID) (*PlaylistItem, error)
	// StoragePathInUse reports whether any live image item still points at
	// the stored file, as a duplicated image does.
	StoragePathInUse(ctx context.Context, storagePath string) (bool, error)
	// SwapOrder gives a the order index of b and vice versa as one atomic
	// unit. It fails with ErrReorderConflict if either slot is stale.
	SwapOrder(ctx context.Context, a, b OrderSlot) error
}
