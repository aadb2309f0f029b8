package remote_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prolet-tools/prolet/internal/remote"
	"github.com/prolet-tools/prolet/internal/remote/remotetest"
)

func newClient(srv *remotetest.Server, token string) *remote.Client {
	return remote.NewClient(remote.ClientConfig{
		APIBaseURL: srv.URL,
		RawBaseURL: srv.RawBaseURL(),
		Token:      token,
		UserAgent:  "prolet-test/1.0",
	})
}

func TestParseRepo(t *testing.T) {
	tests := []struct {
		in      string
		want    remote.Repo
		wantErr bool
	}{
		{in: "octo/docs", want: remote.Repo{Owner: "octo", Name: "docs"}},
		{in: " octo/docs ", want: remote.Repo{Owner: "octo", Name: "docs"}},
		{in: "octo", wantErr: true},
		{in: "octo/", wantErr: true},
		{in: "/docs", wantErr: true},
		{in: "a/b/c", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := remote.ParseRepo(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, remote.ErrInvalidRepo)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "octo/docs", got.String())
		})
	}
}

func TestResolveTree_BlobsOnlyInOrder(t *testing.T) {
	srv := remotetest.New("octo", "docs", "master")
	defer srv.Close()

	idA := srv.AddFile("a.md", []byte("# A"))
	srv.AddEntry("sub", "tree")
	idB := srv.AddFile("sub/b.txt", []byte("bee"))
	srv.AddEntry("vendor/lib", "commit")

	tree, err := newClient(srv, "").ResolveTree(context.Background(), remote.Repo{Owner: "octo", Name: "docs"}, "master")
	require.NoError(t, err)

	assert.Equal(t, remotetest.CommitSHA, tree.Commit)
	assert.Equal(t, remotetest.TreeSHA, tree.TreeID)
	require.Len(t, tree.Entries, 2)

	assert.Equal(t, "a.md", tree.Entries[0].Path)
	assert.Equal(t, "a.md", tree.Entries[0].Name)
	assert.Equal(t, idA, tree.Entries[0].ContentID)
	assert.Equal(t, int64(3), tree.Entries[0].Size)

	assert.Equal(t, "sub/b.txt", tree.Entries[1].Path)
	assert.Equal(t, "b.txt", tree.Entries[1].Name)
	assert.Equal(t, idB, tree.Entries[1].ContentID)
	assert.Equal(t, srv.RawBaseURL()+"/octo/docs/"+remotetest.CommitSHA+"/sub/b.txt", tree.Entries[1].DownloadURL)
}

func TestResolveTree_Headers(t *testing.T) {
	srv := remotetest.New("octo", "docs", "master")
	defer srv.Close()
	srv.AddFile("a.md", []byte("x"))

	_, err := newClient(srv, "s3cret").ResolveTree(context.Background(), remote.Repo{Owner: "octo", Name: "docs"}, "master")
	require.NoError(t, err)

	headers := srv.Headers()
	require.Len(t, headers, 3)
	for _, h := range headers {
		assert.Equal(t, "prolet-test/1.0", h.Get("User-Agent"))
		assert.Equal(t, "application/vnd.github.v3+json", h.Get("Accept"))
		assert.Equal(t, "Bearer s3cret", h.Get("Authorization"))
	}
}

func TestResolveTree_NoTokenNoAuthHeader(t *testing.T) {
	srv := remotetest.New("octo", "docs", "master")
	defer srv.Close()

	_, err := newClient(srv, "").ResolveTree(context.Background(), remote.Repo{Owner: "octo", Name: "docs"}, "master")
	require.NoError(t, err)
	for _, h := range srv.Headers() {
		assert.Empty(t, h.Get("Authorization"))
	}
}

func TestResolveTree_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "forbidden", status: http.StatusForbidden, want: remote.ErrRateLimited},
		{name: "too many requests", status: http.StatusTooManyRequests, want: remote.ErrRateLimited},
		{name: "not found", status: http.StatusNotFound, want: remote.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := remotetest.New("octo", "docs", "master")
			defer srv.Close()
			srv.SetAPIStatus(tt.status)

			_, err := newClient(srv, "").ResolveTree(context.Background(), remote.Repo{Owner: "octo", Name: "docs"}, "master")
			require.ErrorIs(t, err, tt.want)

			var remoteErr *remote.RemoteError
			require.ErrorAs(t, err, &remoteErr)
			assert.Contains(t, remoteErr.Op, "resolve branch")
		})
	}
}

func TestResolveTree_UnknownBranch(t *testing.T) {
	srv := remotetest.New("octo", "docs", "master")
	defer srv.Close()

	_, err := newClient(srv, "").ResolveTree(context.Background(), remote.Repo{Owner: "octo", Name: "docs"}, "main")
	require.ErrorIs(t, err, remote.ErrNotFound)
}

func TestResolveTree_ServerErrorIsStatusError(t *testing.T) {
	srv := remotetest.New("octo", "docs", "master")
	defer srv.Close()
	srv.SetAPIStatus(http.StatusBadGateway)

	_, err := newClient(srv, "").ResolveTree(context.Background(), remote.Repo{Owner: "octo", Name: "docs"}, "master")
	var statusErr *remote.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.True(t, statusErr.Temporary())
	assert.False(t, errors.Is(err, remote.ErrNotFound))
}

func TestDownload(t *testing.T) {
	srv := remotetest.New("octo", "docs", "master")
	defer srv.Close()
	srv.AddFile("dir with space/a b.md", []byte("hello"))

	c := newClient(srv, "")
	u := c.RawURL(remote.Repo{Owner: "octo", Name: "docs"}, remotetest.CommitSHA, "dir with space/a b.md")
	assert.Contains(t, u, "dir%20with%20space/a%20b.md")

	rc, err := c.Download(context.Background(), u)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, 1, srv.Downloads("dir with space/a b.md"))
}

func TestDownload_Status(t *testing.T) {
	srv := remotetest.New("octo", "docs", "master")
	defer srv.Close()
	srv.AddFile("a.md", []byte("x"))
	srv.FailDownload("a.md", http.StatusInternalServerError)

	c := newClient(srv, "")
	_, err := c.Download(context.Background(), c.RawURL(remote.Repo{Owner: "octo", Name: "docs"}, remotetest.CommitSHA, "a.md"))

	var statusErr *remote.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}
