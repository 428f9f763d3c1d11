package marketplace

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar1510/gigchat/internal/apiclient"
	"github.com/ammar1510/gigchat/internal/models"
)

func writeData(w http.ResponseWriter, status int, data string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, `{"success":true,"data":`+data+`}`)
}

// setupTestClient serves mux under /api/v1 and returns a marketplace client
// authenticated as U1.
func setupTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	api, err := apiclient.New(apiclient.Config{BaseURL: server.URL + "/api/v1", MaxRetries: -1})
	require.NoError(t, err)
	return New(api, NewSession("tok-U1", "U1"))
}

func TestProjectDecodesEmbeddedOwner(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-U1", r.Header.Get("Authorization"))
		assert.Equal(t, "P1", r.PathValue("id"))
		writeData(w, http.StatusOK, `{"_id":"P1","title":"Logo","clientId":{"_id":"U1","name":"Olivia"}}`)
	})
	client := setupTestClient(t, mux)

	project, err := client.Project(t.Context(), "P1")

	require.NoError(t, err)
	assert.Equal(t, "P1", project.ID)
	assert.Equal(t, "U1", project.Owner.ID)
	assert.Equal(t, "Olivia", project.Owner.Name())
}

func TestProjectBidsAcceptsPlainIDs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/bids/project/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, `[
			{"id":"b1","projectId":"P1","freelancerId":"U2","status":"accepted","amount":50},
			{"_id":"b2","projectId":"P1","freelancerId":{"id":"U3"},"status":"pending","amount":40}
		]`)
	})
	client := setupTestClient(t, mux)

	bids, err := client.ProjectBids(t.Context(), "P1")

	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, "b1", bids[0].ID)
	assert.Equal(t, "U2", bids[0].Freelancer.ID)
	assert.Equal(t, "U3", bids[1].Freelancer.ID)
	accepted, ok := models.AcceptedBid(bids)
	assert.True(t, ok)
	assert.Equal(t, "b1", accepted.ID)
}

func TestConversations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/chat/conversations", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, `[{"_id":"U2","name":"Fred"},{"id":"U3","email":"sam@example.com"}]`)
	})
	client := setupTestClient(t, mux)

	conversations, err := client.Conversations(t.Context())

	require.NoError(t, err)
	assert.Equal(t, []models.UserSummary{
		{ID: "U2", Name: "Fred"},
		{ID: "U3", Email: "sam@example.com"},
	}, conversations)
}

func TestHistoryEscapesParticipantID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/chat/history/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/history/a%2Fb", r.URL.EscapedPath())
		assert.Equal(t, "a/b", r.PathValue("id"))
		writeData(w, http.StatusOK, `[{"_id":"m1","senderId":{"_id":"a/b","name":"Odd"},"receiverId":"U1","message":"hi"}]`)
	})
	client := setupTestClient(t, mux)

	history, err := client.History(t.Context(), "a/b")

	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "a/b", history[0].SenderID.ID)
	assert.Equal(t, "U1", history[0].ReceiverID.ID)
	assert.Equal(t, "hi", history[0].Body)
}

func TestErrorsCarryStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"success":false,"message":"Project not found"}`)
	})
	client := setupTestClient(t, mux)

	_, err := client.Project(t.Context(), "missing")

	require.Error(t, err)
	assert.True(t, apiclient.IsStatus(err, http.StatusNotFound))
	assert.Contains(t, err.Error(), "Project not found")
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var body models.UserLogin
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Password != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"success":false,"message":"Invalid credentials"}`)
			return
		}
		writeData(w, http.StatusOK, `{"token":"tok-new","user":{"_id":"U1","name":"Olivia","email":"o@example.com"}}`)
	})
	client := setupTestClient(t, mux)

	auth, err := client.Login(t.Context(), "o@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-new", auth.Token)
	assert.Equal(t, "U1", auth.User.ID)

	_, err = client.Login(t.Context(), "o@example.com", "wrong")
	assert.True(t, apiclient.IsStatus(err, http.StatusUnauthorized))
}

func TestUploadAttachment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/uploads", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-U1", r.Header.Get("Authorization"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "brief.txt", header.Filename)
		assert.Equal(t, "project brief", string(content))
		writeData(w, http.StatusCreated, `{"_id":"f1","name":"brief.txt","size":13,"uploadedBy":"U1"}`)
	})
	client := setupTestClient(t, mux)

	var (
		mu       sync.Mutex
		progress []int
	)
	attachment, err := client.UploadAttachment(t.Context(), "brief.txt", strings.NewReader("project brief"), func(p int) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	})

	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "f1", attachment.ID)
	assert.EqualValues(t, 13, attachment.Size)
	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
}

func TestSession(t *testing.T) {
	session := NewSession("a", "U1")
	assert.Equal(t, "a", session.Token())
	assert.Equal(t, "U1", session.UserID())

	session.Set("b", "U2")
	assert.Equal(t, "b", session.Token())
	assert.Equal(t, "U2", session.UserID())
}
