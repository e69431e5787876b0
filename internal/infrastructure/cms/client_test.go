package cms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const validToken = "tok-1"

func newCMSServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["username"] != "bot" || creds["password"] != "secret" {
			http.Error(w, `{"code":"invalid_credentials"}`, http.StatusForbidden)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"data":{"token":"`+validToken+`"}}`)
	})
	mux.HandleFunc("/auth/token/validate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+validToken {
			http.Error(w, `{"code":"jwt_auth_invalid_token"}`, http.StatusForbidden)
			return
		}
		_, _ = io.WriteString(w, `{"code":"jwt_auth_valid_token"}`)
	})
	mux.HandleFunc("/wp/media", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "cover.jpg" || string(data) != "IMG" || r.FormValue("status") != "draft" {
			http.Error(w, "unexpected upload", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":501}`)
	})
	mux.HandleFunc("/wp/posts", func(w http.ResponseWriter, r *http.Request) {
		var post Post
		if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if post.FeaturedMedia != 501 || post.Status != "draft" || len(post.Categories) != 1 {
			http.Error(w, "unexpected post", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":9001}`)
	})
	mux.HandleFunc("/wp/posts/9001", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("context") != "edit" {
			http.Error(w, "raw content needs edit context", http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `{"id":9001,"status":"publish","content":{"raw":"<p>edited remotely</p>","rendered":"x"}}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server, password string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:  srv.URL + "/wp",
		AuthURL:  srv.URL + "/auth",
		Username: "bot",
		Password: password,
	}, srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestClientRoundTrip(t *testing.T) {
	t.Parallel()

	srv := newCMSServer(t)
	c := newTestClient(t, srv, "secret")
	ctx := context.Background()

	token, err := c.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != validToken {
		t.Fatalf("unexpected token %q", token)
	}

	ok, err := c.Validate(ctx, token)
	if err != nil || !ok {
		t.Fatalf("expected valid token, got ok=%v err=%v", ok, err)
	}
	ok, err = c.Validate(ctx, "stale")
	if err != nil || ok {
		t.Fatalf("expected rejected token without error, got ok=%v err=%v", ok, err)
	}

	mediaID, err := c.UploadMedia(ctx, token, "cover.jpg", []byte("IMG"))
	if err != nil {
		t.Fatalf("UploadMedia: %v", err)
	}
	postID, err := c.CreatePost(ctx, token, Post{
		Title: "t", Content: "<p>b</p>", Slug: "t", Status: "draft",
		Categories: []int64{12}, FeaturedMedia: mediaID,
	})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if postID != 9001 {
		t.Fatalf("unexpected post id %d", postID)
	}

	remote, err := c.GetPost(ctx, token, postID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if remote.Status != "publish" || remote.Raw != "<p>edited remotely</p>" {
		t.Fatalf("unexpected remote post %+v", remote)
	}
}

func TestClientErrors(t *testing.T) {
	t.Parallel()

	srv := newCMSServer(t)
	c := newTestClient(t, srv, "wrong")
	ctx := context.Background()

	if _, err := c.Token(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := c.UploadMedia(ctx, validToken, "cover.jpg", nil); err == nil {
		t.Fatal("empty image must be rejected before upload")
	}
	_, err := c.UploadMedia(ctx, validToken, "other.jpg", []byte("IMG"))
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected 400 error, got %v", err)
	}
}
