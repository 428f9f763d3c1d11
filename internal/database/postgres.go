package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ammar1510/gigchat/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT '',
	avatar        TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	last_seen     TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	owner_id    TEXT NOT NULL REFERENCES users(id),
	budget      DOUBLE PRECISION NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS bids (
	seq           BIGSERIAL,
	id            TEXT PRIMARY KEY,
	project_id    TEXT NOT NULL REFERENCES projects(id),
	freelancer_id TEXT NOT NULL REFERENCES users(id),
	amount        DOUBLE PRECISION NOT NULL,
	proposal      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	seq         BIGSERIAL,
	id          TEXT PRIMARY KEY,
	sender_id   TEXT NOT NULL REFERENCES users(id),
	receiver_id TEXT NOT NULL REFERENCES users(id),
	project_id  TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_pair_idx ON messages (sender_id, receiver_id);
CREATE TABLE IF NOT EXISTS attachments (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	size         BIGINT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	uploaded_by  TEXT NOT NULL REFERENCES users(id),
	created_at   TIMESTAMPTZ NOT NULL
);`

const userColumns = "id, name, email, password_hash, role, avatar, created_at, last_seen"

type PostgresStore struct {
	*sql.DB
}

// NewPostgresStore connects to PostgreSQL and creates the schema if needed.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{db}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.Role, &user.Avatar, &user.CreatedAt, &user.LastSeen)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *PostgresStore) CreateUser(name, email, passwordHash, role string) (*models.User, error) {
	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		LastSeen:     now,
	}

	_, err := db.Exec(
		"INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.Avatar, user.CreatedAt, user.LastSeen,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return nil, ErrUserAlreadyExists
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresStore) GetUserByEmail(email string) (*models.User, error) {
	user, err := scanUser(db.QueryRow("SELECT "+userColumns+" FROM users WHERE email = $1", strings.ToLower(email)))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (db *PostgresStore) GetUserByID(id string) (*models.User, error) {
	user, err := scanUser(db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (db *PostgresStore) UpdateLastSeen(userID string) error {
	result, err := db.Exec("UPDATE users SET last_seen = $1 WHERE id = $2", time.Now().UTC(), userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (db *PostgresStore) CreateProject(ownerID string, input models.ProjectInput) (*models.Project, error) {
	if _, err := db.GetUserByID(ownerID); err != nil {
		return nil, err
	}

	project := &models.Project{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		Owner:       models.Ref(ownerID),
		Budget:      input.Budget,
		Status:      models.ProjectOpen,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := db.Exec(
		"INSERT INTO projects (id, title, description, owner_id, budget, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		project.ID, project.Title, project.Description, ownerID, project.Budget, project.Status, project.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return project, nil
}

func (db *PostgresStore) GetProject(id string) (*models.Project, error) {
	var project models.Project
	var ownerID string
	err := db.QueryRow(
		"SELECT id, title, description, owner_id, budget, status, created_at FROM projects WHERE id = $1", id,
	).Scan(&project.ID, &project.Title, &project.Description, &ownerID, &project.Budget, &project.Status, &project.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}

	project.Owner = models.Ref(ownerID)
	return &project, nil
}

func (db *PostgresStore) CreateBid(freelancerID string, input models.BidInput) (*models.Bid, error) {
	if _, err := db.GetUserByID(freelancerID); err != nil {
		return nil, err
	}
	if _, err := db.GetProject(input.ProjectID); err != nil {
		return nil, err
	}

	bid := &models.Bid{
		ID:         uuid.NewString(),
		ProjectID:  input.ProjectID,
		Freelancer: models.Ref(freelancerID),
		Amount:     input.Amount,
		Proposal:   input.Proposal,
		Status:     models.BidPending,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := db.Exec(
		"INSERT INTO bids (id, project_id, freelancer_id, amount, proposal, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		bid.ID, bid.ProjectID, freelancerID, bid.Amount, bid.Proposal, bid.Status, bid.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return bid, nil
}

func (db *PostgresStore) GetBidsByProject(projectID string) ([]*models.Bid, error) {
	if _, err := db.GetProject(projectID); err != nil {
		return nil, err
	}

	rows, err := db.Query(
		"SELECT id, project_id, freelancer_id, amount, proposal, status, created_at FROM bids WHERE project_id = $1 ORDER BY seq",
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bids := []*models.Bid{}
	for rows.Next() {
		var bid models.Bid
		var freelancerID string
		if err := rows.Scan(&bid.ID, &bid.ProjectID, &freelancerID, &bid.Amount, &bid.Proposal, &bid.Status, &bid.CreatedAt); err != nil {
			return nil, err
		}
		bid.Freelancer = models.Ref(freelancerID)
		bids = append(bids, &bid)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return bids, nil
}

func (db *PostgresStore) AcceptBid(bidID, ownerID string) (*models.Bid, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var bid models.Bid
	var freelancerID, projectOwner string
	err = tx.QueryRow(`
		SELECT b.id, b.project_id, b.freelancer_id, b.amount, b.proposal, b.status, b.created_at, p.owner_id
		FROM bids b JOIN projects p ON p.id = b.project_id
		WHERE b.id = $1
		FOR UPDATE`, bidID,
	).Scan(&bid.ID, &bid.ProjectID, &freelancerID, &bid.Amount, &bid.Proposal, &bid.Status, &bid.CreatedAt, &projectOwner)
	if err == sql.ErrNoRows {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, err
	}
	if projectOwner != ownerID {
		return nil, ErrNotProjectOwner
	}
	if bid.Status != models.BidPending {
		return nil, ErrBidClosed
	}

	_, err = tx.Exec(`
		UPDATE bids SET status = CASE WHEN id = $1 THEN 'accepted' ELSE 'rejected' END
		WHERE project_id = $2 AND (id = $1 OR status = 'pending')`,
		bidID, bid.ProjectID,
	)
	if err != nil {
		return nil, err
	}
	if _, err = tx.Exec("UPDATE projects SET status = $1 WHERE id = $2", models.ProjectInProgress, bid.ProjectID); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	bid.Freelancer = models.Ref(freelancerID)
	bid.Status = models.BidAccepted
	return &bid, nil
}

func (db *PostgresStore) CreateMessage(senderID, receiverID, projectID, body string) (*models.Message, error) {
	if _, err := db.GetUserByID(senderID); err != nil {
		return nil, err
	}
	if _, err := db.GetUserByID(receiverID); err != nil {
		return nil, err
	}

	message := &models.Message{
		ID:         uuid.NewString(),
		SenderID:   models.Ref(senderID),
		ReceiverID: models.Ref(receiverID),
		Body:       body,
		ProjectID:  projectID,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := db.Exec(
		"INSERT INTO messages (id, sender_id, receiver_id, project_id, body, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		message.ID, senderID, receiverID, message.ProjectID, message.Body, message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return message, nil
}

func (db *PostgresStore) GetConversation(userID1, userID2 string) ([]*models.Message, error) {
	rows, err := db.Query(
		`SELECT id, sender_id, receiver_id, project_id, body, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY seq ASC`,
		userID1, userID2,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		var msg models.Message
		var senderID, receiverID string
		if err := rows.Scan(&msg.ID, &senderID, &receiverID, &msg.ProjectID, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.SenderID = models.Ref(senderID)
		msg.ReceiverID = models.Ref(receiverID)
		messages = append(messages, &msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (db *PostgresStore) GetConversationPartners(userID string) ([]*models.User, error) {
	rows, err := db.Query(`
		SELECT u.id, u.name, u.email, u.password_hash, u.role, u.avatar, u.created_at, u.last_seen
		FROM users u
		JOIN (
			SELECT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS partner_id,
			       MAX(seq) AS last_seq
			FROM messages
			WHERE sender_id = $1 OR receiver_id = $1
			GROUP BY 1
		) p ON p.partner_id = u.id
		WHERE u.id <> $1
		ORDER BY p.last_seq DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation partners: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

func (db *PostgresStore) CreateAttachment(uploadedBy, name, contentType string, size int64) (*models.Attachment, error) {
	attachment := &models.Attachment{
		ID:          uuid.NewString(),
		Name:        name,
		Size:        size,
		ContentType: contentType,
		UploadedBy:  uploadedBy,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := db.Exec(
		"INSERT INTO attachments (id, name, size, content_type, uploaded_by, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		attachment.ID, attachment.Name, attachment.Size, attachment.ContentType, attachment.UploadedBy, attachment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return attachment, nil
}

func (db *PostgresStore) Close() error {
	return db.DB.Close()
}
