// Package marketplace binds the marketplace REST endpoints used by the chat
// client onto the resilient request client.
package marketplace

import (
	"context"
	"errors"
	"io"
	"net/url"

	"github.com/ammar1510/gigchat/internal/apiclient"
	"github.com/ammar1510/gigchat/internal/models"
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
}

// Client implements the lookups the conversation manager needs plus the
// auth and upload endpoints around them.
type Client struct {
	api    *apiclient.Client
	tokens TokenSource
}

// New returns a Client that authenticates with tokens. A nil TokenSource
// sends unauthenticated requests.
func New(api *apiclient.Client, tokens TokenSource) *Client {
	return &Client{api: api, tokens: tokens}
}

func (c *Client) opts() apiclient.RequestConfig {
	if c.tokens == nil {
		return apiclient.RequestConfig{}
	}
	return apiclient.RequestConfig{Token: c.tokens.Token()}
}

// Project fetches one project with its owner.
func (c *Client) Project(ctx context.Context, projectID string) (models.Project, error) {
	return apiclient.Decode[models.Project](c.api.Get(ctx, "/projects/"+url.PathEscape(projectID), c.opts()))
}

// ProjectBids lists every bid on a project.
func (c *Client) ProjectBids(ctx context.Context, projectID string) ([]models.Bid, error) {
	return apiclient.Decode[[]models.Bid](c.api.Get(ctx, "/bids/project/"+url.PathEscape(projectID), c.opts()))
}

// Conversations lists the users the caller has exchanged messages with.
func (c *Client) Conversations(ctx context.Context) ([]models.UserSummary, error) {
	return apiclient.Decode[[]models.UserSummary](c.api.Get(ctx, "/chat/conversations", c.opts()))
}

// History returns the messages between the caller and participantID,
// oldest first.
func (c *Client) History(ctx context.Context, participantID string) ([]models.Message, error) {
	return apiclient.Decode[[]models.Message](c.api.Get(ctx, "/chat/history/"+url.PathEscape(participantID), c.opts()))
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (models.AuthResponse, error) {
	body := models.UserLogin{Email: email, Password: password}
	auth, err := apiclient.Decode[models.AuthResponse](c.api.Post(ctx, "/auth/login", body, apiclient.RequestConfig{}))
	if err != nil {
		return models.AuthResponse{}, err
	}
	if auth.Token == "" {
		return models.AuthResponse{}, errors.New("marketplace: login response has no token")
	}
	return auth, nil
}

// Me returns the account behind the current token.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	return apiclient.Decode[models.User](c.api.Get(ctx, "/auth/me", c.opts()))
}

// UploadAttachment sends a file to the upload endpoint. onProgress may be
// nil.
func (c *Client) UploadAttachment(ctx context.Context, name string, content io.Reader, onProgress func(percent int)) (models.Attachment, error) {
	payload, err := c.api.Upload(ctx, "/uploads", apiclient.UploadRequest{
		FileName: name,
		Content:  content,
	}, apiclient.UploadConfig{
		Token:      c.opts().Token,
		OnProgress: onProgress,
	})
	return apiclient.Decode[models.Attachment](payload, err)
}
