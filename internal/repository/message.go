package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusconnect/messaging/internal/logger"
	"github.com/campusconnect/messaging/internal/model"
)

const msgCols = `m.id, m.conversation_id, m.sender_id, m.receiver_id, m.content, m.message_type, m.status,
	m.media_url, m.media_thumbnail_url, m.media_type, m.media_size, m.media_duration_secs,
	m.link_title, m.link_description, m.link_image, m.link_site_name, m.link_favicon,
	m.reply_to_id, m.forwarded, m.forwarded_from, m.original_message_id,
	m.edited, m.edited_at, m.deleted, m.created_at, m.seq`

// statusRankSQL orders delivery statuses for the monotonic-transition guard.
// failed ranks highest so nothing ever moves out of it.
const statusRankSQL = `CASE %s WHEN 'sending' THEN 0 WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 ELSE 99 END`

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// scanMessage scans a row in msgCols order.
func scanMessage(s interface{ Scan(dest ...any) error }, m *model.Message) error {
	var media model.MediaMeta
	var link model.LinkPreview
	var originalID *string
	if err := s.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Content, &m.MessageType, &m.Status,
		&media.URL, &media.ThumbnailURL, &media.Type, &media.Size, &media.DurationSecs,
		&link.Title, &link.Description, &link.Image, &link.SiteName, &link.Favicon,
		&m.ReplyToID, &m.Forwarded, &m.ForwardedFrom, &originalID,
		&m.Edited, &m.EditedAt, &m.Deleted, &m.CreatedAt, &m.Seq); err != nil {
		return err
	}
	if media.URL != "" {
		m.Media = &media
	}
	if link != (model.LinkPreview{}) {
		m.LinkPreview = &link
	}
	if originalID != nil {
		m.OriginalMessageID = *originalID
	}
	m.Read = m.Status == model.MessageStatusRead
	return nil
}

// Create persists a new message and refreshes the owning conversation's
// lastMessage snapshot in the same transaction, so the preview can never
// point at a message that does not exist. The store assigns the timestamp
// and sequence number; CreatedAt and Seq are filled in on m.
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = model.MessageStatusSent
	}
	media := m.Media
	if media == nil {
		media = &model.MediaMeta{}
	}
	link := m.LinkPreview
	if link == nil {
		link = &model.LinkPreview{}
	}
	var originalID *string
	if m.OriginalMessageID != "" {
		originalID = &m.OriginalMessageID
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("msgRepo.Create begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, receiver_id, content, message_type, status,
		        media_url, media_thumbnail_url, media_type, media_size, media_duration_secs,
		        link_title, link_description, link_image, link_site_name, link_favicon,
		        reply_to_id, forwarded, forwarded_from, original_message_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, NOW())
		 RETURNING created_at, seq`,
		m.ID, m.ConversationID, m.SenderID, m.ReceiverID, m.Content, m.MessageType, m.Status,
		media.URL, media.ThumbnailURL, media.Type, media.Size, media.DurationSecs,
		link.Title, link.Description, link.Image, link.SiteName, link.Favicon,
		m.ReplyToID, m.Forwarded, m.ForwardedFrom, originalID,
	).Scan(&m.CreatedAt, &m.Seq)
	if err != nil {
		return fmt.Errorf("msgRepo.Create insert: %w", err)
	}

	preview := m.Content
	if m.Deleted {
		preview = model.DeletedPlaceholder
	}
	if _, err := tx.Exec(ctx,
		`UPDATE conversations
		 SET last_message_content = $1, last_message_sender_id = $2, last_message_at = $3
		 WHERE id = $4`,
		preview, m.SenderID, m.CreatedAt, m.ConversationID,
	); err != nil {
		return fmt.Errorf("msgRepo.Create snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("msgRepo.Create commit: %w", err)
	}
	return nil
}

// GetByID returns the raw message row. Callers that surface the message to a
// viewer must call Redact on deleted rows.
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m := &model.Message{}
	row := r.pool.QueryRow(ctx, `SELECT `+msgCols+` FROM messages m WHERE m.id = $1`, id)
	if err := scanMessage(row, m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return m, nil
}

// List returns a page of the conversation's messages for one viewer, newest
// first. Messages at or before the viewer's clear cutoff are omitted; deleted
// rows are returned redacted so ordering and reply references survive.
func (r *MessageRepository) List(ctx context.Context, conversationID, viewerID string, limit, offset int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.List", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+msgCols+` FROM messages m
		 LEFT JOIN conversation_overlays o
		   ON o.conversation_id = m.conversation_id AND o.user_id = $2
		 WHERE m.conversation_id = $1
		   AND (o.cleared_at IS NULL OR m.created_at > o.cleared_at)
		 ORDER BY m.created_at DESC, m.seq DESC
		 LIMIT $3 OFFSET $4`,
		conversationID, viewerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.List query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("msgRepo.List scan: %w", err)
		}
		m.Redact()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.List rows: %w", err)
	}
	return messages, nil
}

// UpdateStatus advances a message's delivery status. The guard is enforced in
// SQL so racing callers can never move a message backwards: the update applies
// only when the new status ranks strictly higher, and failed is reachable only
// from sending. A regression or repeat is a no-op, reported as changed=false.
func (r *MessageRepository) UpdateStatus(ctx context.Context, id string, next model.MessageStatus) (bool, error) {
	defer logger.DeferLogDuration("msg.UpdateStatus", time.Now())()
	curRank := fmt.Sprintf(statusRankSQL, "status")
	nextRank := fmt.Sprintf(statusRankSQL, "$2")
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET status = $2
		 WHERE id = $1 AND status != 'failed'
		   AND `+curRank+` < `+nextRank+`
		   AND ($2 != 'failed' OR status = 'sending')`,
		id, next,
	)
	if err != nil {
		return false, fmt.Errorf("msgRepo.UpdateStatus: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkDelivered moves the user's incoming sent messages in a conversation to
// delivered. Fired automatically when a live subscription observes them.
func (r *MessageRepository) MarkDelivered(ctx context.Context, conversationID, userID string) (int64, error) {
	defer logger.DeferLogDuration("msg.MarkDelivered", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET status = 'delivered'
		 WHERE conversation_id = $1 AND receiver_id = $2 AND status = 'sent'`,
		conversationID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.MarkDelivered: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkRead moves all of the user's incoming messages in a conversation to
// read. Idempotent: already-read messages are untouched and re-calls affect
// zero rows.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, userID string) (int64, error) {
	defer logger.DeferLogDuration("msg.MarkRead", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET status = 'read'
		 WHERE conversation_id = $1 AND receiver_id = $2
		   AND status IN ('sent', 'delivered')`,
		conversationID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.MarkRead: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Edit replaces a message's content. Only the sender may edit, only within
// the edit window measured from the original send time, and only when the
// trimmed content actually differs.
func (r *MessageRepository) Edit(ctx context.Context, id, editorID, newContent string, window time.Duration) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.Edit", time.Now())()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Edit begin: %w", err)
	}
	defer tx.Rollback(ctx)

	m := &model.Message{}
	row := tx.QueryRow(ctx, `SELECT `+msgCols+` FROM messages m WHERE m.id = $1 FOR UPDATE`, id)
	if err := scanMessage(row, m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("msgRepo.Edit select: %w", err)
	}
	if m.SenderID != editorID {
		return nil, ErrPermissionDenied
	}
	if m.Deleted {
		return nil, ErrNotFound
	}
	if strings.TrimSpace(newContent) == strings.TrimSpace(m.Content) {
		return nil, ErrNoChange
	}

	// The window is checked against the database clock, so no app instance
	// can widen it by drifting.
	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE messages SET content = $1, edited = true, edited_at = $2
		 WHERE id = $3 AND created_at > NOW() - make_interval(secs => $4)`,
		newContent, now, id, window.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Edit update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrEditWindowExpired
	}
	// Keep the conversation preview in sync when the latest message changes.
	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET last_message_content = $1
		 WHERE id = $2 AND last_message_at = $3`,
		newContent, m.ConversationID, m.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("msgRepo.Edit snapshot: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("msgRepo.Edit commit: %w", err)
	}

	m.Content = newContent
	m.Edited = true
	m.EditedAt = &now
	return m, nil
}

// SoftDelete hides a message's content everywhere while keeping the row for
// ordering and reply references. Only the sender may delete.
func (r *MessageRepository) SoftDelete(ctx context.Context, id, userID string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.SoftDelete", time.Now())()
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.SenderID != userID {
		return nil, ErrPermissionDenied
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("msgRepo.SoftDelete begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx,
		`UPDATE messages SET deleted = true WHERE id = $1`, id,
	); err != nil {
		return nil, fmt.Errorf("msgRepo.SoftDelete: %w", err)
	}
	// The conversation preview shows the placeholder when its latest message
	// was the one deleted.
	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET last_message_content = $1
		 WHERE id = $2 AND last_message_at = $3`,
		model.DeletedPlaceholder, m.ConversationID, m.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("msgRepo.SoftDelete snapshot: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("msgRepo.SoftDelete commit: %w", err)
	}
	m.Deleted = true
	m.Redact()
	return m, nil
}

// Star adds the user to the message's starred set. Idempotent.
func (r *MessageRepository) Star(ctx context.Context, messageID, userID string) error {
	defer logger.DeferLogDuration("msg.Star", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO message_stars (message_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		messageID, userID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Star: %w", err)
	}
	return nil
}

// Unstar removes the user from the message's starred set. Idempotent.
func (r *MessageRepository) Unstar(ctx context.Context, messageID, userID string) error {
	defer logger.DeferLogDuration("msg.Unstar", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM message_stars WHERE message_id = $1 AND user_id = $2`,
		messageID, userID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Unstar: %w", err)
	}
	return nil
}

// StarredBy returns the ids of users who starred the message.
func (r *MessageRepository) StarredBy(ctx context.Context, messageID string) ([]string, error) {
	defer logger.DeferLogDuration("msg.StarredBy", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM message_stars WHERE message_id = $1 ORDER BY starred_at`,
		messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.StarredBy query: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("msgRepo.StarredBy scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Forward copies a message into another conversation as a brand-new message
// with its own identity, timestamp, and status lifecycle. The source message
// is never mutated. byUserID must be party to both conversations.
func (r *MessageRepository) Forward(ctx context.Context, messageID, toConversationID, byUserID string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.Forward", time.Now())()
	src, err := r.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if src.Deleted {
		return nil, ErrNotFound
	}
	if src.SenderID != byUserID && src.ReceiverID != byUserID {
		return nil, ErrPermissionDenied
	}

	var lo, hi string
	err = r.pool.QueryRow(ctx,
		`SELECT participant_lo, participant_hi FROM conversations WHERE id = $1`,
		toConversationID,
	).Scan(&lo, &hi)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Forward target: %w", err)
	}
	var receiver string
	switch byUserID {
	case lo:
		receiver = hi
	case hi:
		receiver = lo
	default:
		return nil, ErrPermissionDenied
	}

	fwd := &model.Message{
		ConversationID:    toConversationID,
		SenderID:          byUserID,
		ReceiverID:        receiver,
		Content:           src.Content,
		MessageType:       src.MessageType,
		Media:             src.Media,
		LinkPreview:       src.LinkPreview,
		Forwarded:         true,
		ForwardedFrom:     byUserID,
		OriginalMessageID: src.ID,
	}
	if err := r.Create(ctx, fwd); err != nil {
		return nil, err
	}
	return fwd, nil
}
