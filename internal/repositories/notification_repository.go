package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"community-chat/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationPatch updates a notification; nil fields are left unchanged.
type NotificationPatch struct {
	IsRead        *bool
	RequestStatus *models.RequestStatus
	UpdatedBy     *int
}

// NotificationRepository persists user notifications.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n models.UserNotification) (models.UserNotification, error)
	GetNotification(ctx context.Context, notificationID int) (models.UserNotification, error)
	ListNotifications(ctx context.Context, filter models.NotificationFilter) ([]models.UserNotification, error)
	UpdateNotification(ctx context.Context, notificationID int, patch NotificationPatch) (models.UserNotification, error)
	MarkRead(ctx context.Context, userID int, notificationIDs []int) (int, error)
	DeleteNotification(ctx context.Context, notificationID int) (models.UserNotification, error)
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, user_id, type, scope, body, sender_id, group_id, request_status, detail_read, is_read,
        created_by, updated_by, created_at, updated_at`

type notificationRow struct {
	ID            int            `db:"id"`
	UserID        int            `db:"user_id"`
	Type          string         `db:"type"`
	Scope         string         `db:"scope"`
	Body          string         `db:"body"`
	SenderID      int            `db:"sender_id"`
	GroupID       sql.NullInt64  `db:"group_id"`
	RequestStatus sql.NullString `db:"request_status"`
	DetailRead    bool           `db:"detail_read"`
	IsRead        bool           `db:"is_read"`
	CreatedBy     sql.NullInt64  `db:"created_by"`
	UpdatedBy     sql.NullInt64  `db:"updated_by"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r notificationRow) toModel() models.UserNotification {
	n := models.UserNotification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      models.NotificationType(r.Type),
		IsRead:    r.IsRead,
		CreatedBy: nullIntPtr(r.CreatedBy),
		UpdatedBy: nullIntPtr(r.UpdatedBy),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	switch n.Type {
	case models.NotificationMessage:
		n.Message = &models.MessageDetail{
			Type:     models.NotificationScope(r.Scope),
			Message:  r.Body,
			SenderID: r.SenderID,
			GroupID:  nullIntPtr(r.GroupID),
			IsRead:   r.DetailRead,
		}
	case models.NotificationRequest:
		n.Request = &models.RequestDetail{
			Type:     models.NotificationScope(r.Scope),
			SenderID: r.SenderID,
			GroupID:  int(r.GroupID.Int64),
			IsRead:   r.DetailRead,
			Status:   models.RequestStatus(r.RequestStatus.String),
		}
	}
	return n
}

// CreateNotification stores a message or request notification.
func (r *NotificationRepo) CreateNotification(ctx context.Context, n models.UserNotification) (models.UserNotification, error) {
	var (
		scope    models.NotificationScope
		body     string
		senderID int
		groupID  *int
		status   *string
	)
	switch {
	case n.Type == models.NotificationMessage && n.Message != nil:
		scope, body, senderID, groupID = n.Message.Type, n.Message.Message, n.Message.SenderID, n.Message.GroupID
	case n.Type == models.NotificationRequest && n.Request != nil:
		scope, senderID = n.Request.Type, n.Request.SenderID
		groupID = &n.Request.GroupID
		s := string(n.Request.Status)
		if s == "" {
			s = string(models.RequestPending)
		}
		status = &s
	default:
		return models.UserNotification{}, errors.New("notification detail does not match its type")
	}

	var row notificationRow
	err := r.db.QueryRowxContext(ctx, `INSERT INTO user_notifications
        (user_id, type, scope, body, sender_id, group_id, request_status, created_by, updated_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING `+notificationColumns,
		n.UserID, string(n.Type), string(scope), body, senderID, groupID, status, n.CreatedBy).
		StructScan(&row)
	if err != nil {
		return models.UserNotification{}, err
	}
	return row.toModel(), nil
}

// GetNotification fetches one notification.
func (r *NotificationRepo) GetNotification(ctx context.Context, notificationID int) (models.UserNotification, error) {
	var row notificationRow
	err := r.db.GetContext(ctx, &row, `SELECT `+notificationColumns+` FROM user_notifications WHERE id=$1`, notificationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserNotification{}, ErrNotificationNotFound
	}
	if err != nil {
		return models.UserNotification{}, err
	}
	return row.toModel(), nil
}

// ListNotifications returns a user's notifications, most recently updated first.
func (r *NotificationRepo) ListNotifications(ctx context.Context, filter models.NotificationFilter) ([]models.UserNotification, error) {
	var where whereBuilder
	where.add("user_id=$%d", filter.UserID)
	if filter.IsRead != nil {
		where.add("is_read=$%d", *filter.IsRead)
	}
	if filter.Type != "" {
		where.add("type=$%d", string(filter.Type))
	}
	limit, offset := pageBounds(filter.Page, filter.Limit)
	query := `SELECT ` + notificationColumns + ` FROM user_notifications` + where.String() +
		` ORDER BY updated_at DESC, id DESC LIMIT ` + where.next(limit) + ` OFFSET ` + where.next(offset)

	var rows []notificationRow
	if err := r.db.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, err
	}
	list := make([]models.UserNotification, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.toModel())
	}
	return list, nil
}

// UpdateNotification applies a patch. Setting IsRead also marks the detail read.
func (r *NotificationRepo) UpdateNotification(ctx context.Context, notificationID int, patch NotificationPatch) (models.UserNotification, error) {
	var status *string
	if patch.RequestStatus != nil {
		s := string(*patch.RequestStatus)
		status = &s
	}
	var row notificationRow
	err := r.db.QueryRowxContext(ctx, `UPDATE user_notifications SET
            is_read = COALESCE($2, is_read),
            detail_read = COALESCE($2, detail_read),
            request_status = CASE WHEN type='request' THEN COALESCE($3, request_status) ELSE request_status END,
            updated_by = COALESCE($4, updated_by),
            updated_at = NOW()
        WHERE id=$1 RETURNING `+notificationColumns, notificationID, patch.IsRead, status, patch.UpdatedBy).
		StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserNotification{}, ErrNotificationNotFound
	}
	if err != nil {
		return models.UserNotification{}, err
	}
	return row.toModel(), nil
}

// MarkRead marks the listed notifications of userID as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID int, notificationIDs []int) (int, error) {
	if len(notificationIDs) == 0 {
		return 0, nil
	}
	ids := make([]int64, 0, len(notificationIDs))
	for _, id := range notificationIDs {
		ids = append(ids, int64(id))
	}
	res, err := r.db.ExecContext(ctx, `UPDATE user_notifications SET is_read=TRUE, detail_read=TRUE, updated_by=$1, updated_at=NOW()
        WHERE user_id=$1 AND id = ANY($2)`, userID, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

// DeleteNotification removes a notification and returns it.
func (r *NotificationRepo) DeleteNotification(ctx context.Context, notificationID int) (models.UserNotification, error) {
	var row notificationRow
	err := r.db.QueryRowxContext(ctx, `DELETE FROM user_notifications WHERE id=$1 RETURNING `+notificationColumns, notificationID).
		StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserNotification{}, ErrNotificationNotFound
	}
	if err != nil {
		return models.UserNotification{}, err
	}
	return row.toModel(), nil
}
