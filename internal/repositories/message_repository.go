package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"community-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository persists chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, draft models.MessageDraft) (models.ChatMessage, error)
	GetMessage(ctx context.Context, messageID int) (models.ChatMessage, error)
	UpdateMessageContent(ctx context.Context, messageID int, content string) (models.ChatMessage, error)
	ListMessages(ctx context.Context, filter models.MessageFilter) ([]models.ChatMessage, error)
	DeleteMessage(ctx context.Context, messageID int) (models.ChatMessage, error)
	ReportMessage(ctx context.Context, messageID int, reporterID int, note string) (models.ChatMessage, error)
	UpdateReportStatus(ctx context.Context, messageID int, status models.ReportStatus, actorID int) (models.ChatMessage, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, type, content, media_mimetype, media_filename, sender_id, receiver_id, group_id,
        report_status, report_reporter_id, report_note, edited, edited_at, updated_by, created_at, updated_at`

type messageRow struct {
	ID               int            `db:"id"`
	Type             string         `db:"type"`
	Content          string         `db:"content"`
	MediaMimeType    sql.NullString `db:"media_mimetype"`
	MediaFilename    sql.NullString `db:"media_filename"`
	SenderID         int            `db:"sender_id"`
	ReceiverID       sql.NullInt64  `db:"receiver_id"`
	GroupID          sql.NullInt64  `db:"group_id"`
	ReportStatus     sql.NullString `db:"report_status"`
	ReportReporterID sql.NullInt64  `db:"report_reporter_id"`
	ReportNote       sql.NullString `db:"report_note"`
	Edited           bool           `db:"edited"`
	EditedAt         sql.NullTime   `db:"edited_at"`
	UpdatedBy        sql.NullInt64  `db:"updated_by"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r messageRow) toModel() models.ChatMessage {
	msg := models.ChatMessage{
		ID:         r.ID,
		Type:       models.MessageType(r.Type),
		Content:    r.Content,
		SenderID:   r.SenderID,
		ReceiverID: nullIntPtr(r.ReceiverID),
		GroupID:    nullIntPtr(r.GroupID),
		UpdatedBy:  nullIntPtr(r.UpdatedBy),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.MediaFilename.Valid {
		msg.Media = &models.MediaRef{MimeType: r.MediaMimeType.String, Filename: r.MediaFilename.String}
	}
	if r.ReportStatus.Valid {
		msg.Report = &models.MessageReport{
			Status:     models.ReportStatus(r.ReportStatus.String),
			ReporterID: int(r.ReportReporterID.Int64),
			Note:       r.ReportNote.String,
		}
	}
	if r.Edited {
		msg.Edited = &models.MessageEdit{Status: true, Date: r.EditedAt.Time}
	}
	return msg
}

// CreateMessage stores a draft and returns the canonical record.
func (r *MessageRepo) CreateMessage(ctx context.Context, draft models.MessageDraft) (models.ChatMessage, error) {
	var mimeType, filename *string
	if draft.Media != nil {
		mimeType, filename = &draft.Media.MimeType, &draft.Media.Filename
	}
	var row messageRow
	err := r.db.QueryRowxContext(ctx, `INSERT INTO chat_messages (type, content, media_mimetype, media_filename, sender_id, receiver_id, group_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+messageColumns,
		string(draft.Type), draft.Content, mimeType, filename, draft.SenderID, draft.ReceiverID, draft.GroupID).
		StructScan(&row)
	if err != nil {
		return models.ChatMessage{}, err
	}
	return row.toModel(), nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.ChatMessage, error) {
	var row messageRow
	err := r.db.GetContext(ctx, &row, `SELECT `+messageColumns+` FROM chat_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatMessage{}, ErrMessageNotFound
	}
	if err != nil {
		return models.ChatMessage{}, err
	}
	return row.toModel(), nil
}

// UpdateMessageContent replaces the text and marks the message edited.
func (r *MessageRepo) UpdateMessageContent(ctx context.Context, messageID int, content string) (models.ChatMessage, error) {
	return r.updateReturning(ctx, `UPDATE chat_messages SET content=$2, edited=TRUE, edited_at=NOW(), updated_at=NOW()
        WHERE id=$1 RETURNING `+messageColumns, messageID, content)
}

// ListMessages returns messages matching the filter, oldest first.
func (r *MessageRepo) ListMessages(ctx context.Context, filter models.MessageFilter) ([]models.ChatMessage, error) {
	var where whereBuilder
	if filter.SenderID != nil {
		where.add("sender_id=$%d", *filter.SenderID)
	}
	if filter.ReceiverID != nil {
		where.add("receiver_id=$%d", *filter.ReceiverID)
	}
	if filter.GroupID != nil {
		where.add("group_id=$%d", *filter.GroupID)
	}
	if filter.Between != nil {
		a, b := where.next(filter.Between[0]), where.next(filter.Between[1])
		where.raw("((sender_id=" + a + " AND receiver_id=" + b + ") OR (sender_id=" + b + " AND receiver_id=" + a + "))")
	}
	if filter.Search != "" {
		where.add("content ILIKE '%%' || $%d || '%%'", filter.Search)
	}
	if filter.Reported {
		where.raw("report_status IS NOT NULL")
	}
	limit, offset := pageBounds(filter.Page, filter.Limit)
	query := `SELECT ` + messageColumns + ` FROM chat_messages` + where.String() +
		` ORDER BY created_at ASC, id ASC LIMIT ` + where.next(limit) + ` OFFSET ` + where.next(offset)

	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, err
	}
	msgs := make([]models.ChatMessage, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toModel())
	}
	return msgs, nil
}

// DeleteMessage removes a message and returns what was deleted.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID int) (models.ChatMessage, error) {
	return r.updateReturning(ctx, `DELETE FROM chat_messages WHERE id=$1 RETURNING `+messageColumns, messageID)
}

// ReportMessage flags a message for moderation.
func (r *MessageRepo) ReportMessage(ctx context.Context, messageID int, reporterID int, note string) (models.ChatMessage, error) {
	return r.updateReturning(ctx, `UPDATE chat_messages
        SET report_status=$2, report_reporter_id=$3, report_note=$4, updated_by=$3, updated_at=NOW()
        WHERE id=$1 RETURNING `+messageColumns, messageID, string(models.ReportPending), reporterID, note)
}

// UpdateReportStatus records a moderation decision on a reported message.
func (r *MessageRepo) UpdateReportStatus(ctx context.Context, messageID int, status models.ReportStatus, actorID int) (models.ChatMessage, error) {
	return r.updateReturning(ctx, `UPDATE chat_messages SET report_status=$2, updated_by=$3, updated_at=NOW()
        WHERE id=$1 AND report_status IS NOT NULL RETURNING `+messageColumns, messageID, string(status), actorID)
}

func (r *MessageRepo) updateReturning(ctx context.Context, query string, args ...any) (models.ChatMessage, error) {
	var row messageRow
	err := r.db.QueryRowxContext(ctx, query, args...).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatMessage{}, ErrMessageNotFound
	}
	if err != nil {
		return models.ChatMessage{}, err
	}
	return row.toModel(), nil
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
