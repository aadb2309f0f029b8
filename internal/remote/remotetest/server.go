// Package remotetest provides an in-process fake of the GitHub tree and raw
// content endpoints for tests.
package remotetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"
)

const (
	CommitSHA = "c0ffee0000000000000000000000000000000001"
	TreeSHA   = "feed000000000000000000000000000000000002"
)

type file struct {
	content []byte
	id      string
	typ     string
}

// Server is a fake GitHub. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	Owner  string
	Name   string
	Branch string

	mu        sync.Mutex
	order     []string
	files     map[string]*file
	fail      map[string]int
	apiStatus int
	downloads map[string]int
	headers   []http.Header
}

// New starts a fake for owner/name on branch.
func New(owner, name, branch string) *Server {
	s := &Server{
		Owner:     owner,
		Name:      name,
		Branch:    branch,
		files:     make(map[string]*file),
		fail:      make(map[string]int),
		downloads: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// BlobID returns the git blob id of content.
func BlobID(content []byte) string {
	return plumbing.ComputeHash(plumbing.BlobObject, content).String()
}

// AddFile adds or replaces a blob and returns its content id.
func (s *Server) AddFile(p string, content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[p]; !ok {
		s.order = append(s.order, p)
	}
	id := BlobID(content)
	s.files[p] = &file{content: content, id: id, typ: "blob"}
	return id
}

// AddEntry adds a non-blob entry (tree, commit) to the listing.
func (s *Server) AddEntry(p, typ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[p]; !ok {
		s.order = append(s.order, p)
	}
	s.files[p] = &file{id: strings.Repeat("0", 40), typ: typ}
}

// FailDownload makes raw downloads of p answer with status.
func (s *Server) FailDownload(p string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[p] = status
}

// SetAPIStatus makes every API call answer with status. Zero restores.
func (s *Server) SetAPIStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiStatus = status
}

// Downloads returns how many times p was downloaded.
func (s *Server) Downloads(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads[p]
}

// TotalDownloads returns the number of raw downloads served or failed.
func (s *Server) TotalDownloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.downloads {
		n += c
	}
	return n
}

// Headers returns the headers of every request seen so far.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.headers...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.headers = append(s.headers, r.Header.Clone())
	apiStatus := s.apiStatus
	s.mu.Unlock()

	repoPrefix := fmt.Sprintf("/repos/%s/%s/git/", s.Owner, s.Name)
	switch {
	case strings.HasPrefix(r.URL.Path, repoPrefix):
		if apiStatus != 0 {
			http.Error(w, "api failure", apiStatus)
			return
		}
		s.handleAPI(w, r, strings.TrimPrefix(r.URL.Path, repoPrefix))
	case strings.HasPrefix(r.URL.Path, "/raw/"):
		s.handleRaw(w, strings.TrimPrefix(r.URL.Path, "/raw/"))
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request, rest string) {
	switch {
	case rest == "ref/heads/"+s.Branch:
		writeJSON(w, map[string]any{"object": map[string]string{"sha": CommitSHA, "type": "commit"}})
	case rest == "commits/"+CommitSHA:
		writeJSON(w, map[string]any{"tree": map[string]string{"sha": TreeSHA}})
	case rest == "trees/"+TreeSHA && r.URL.Query().Get("recursive") == "1":
		s.mu.Lock()
		items := make([]map[string]any, 0, len(s.order))
		for _, p := range s.order {
			f := s.files[p]
			items = append(items, map[string]any{
				"path": p, "type": f.typ, "sha": f.id, "size": len(f.content),
			})
		}
		s.mu.Unlock()
		writeJSON(w, map[string]any{"sha": TreeSHA, "truncated": false, "tree": items})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleRaw(w http.ResponseWriter, rest string) {
	prefix := fmt.Sprintf("%s/%s/%s/", s.Owner, s.Name, CommitSHA)
	if !strings.HasPrefix(rest, prefix) {
		http.Error(w, "unknown revision", http.StatusNotFound)
		return
	}
	p := strings.TrimPrefix(rest, prefix)

	s.mu.Lock()
	s.downloads[p]++
	status := s.fail[p]
	f, ok := s.files[p]
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, "injected failure", status)
		return
	}
	if !ok || f.typ != "blob" {
		http.Error(w, "no such file", http.StatusNotFound)
		return
	}
	_, _ = w.Write(f.content)
}

// RawBaseURL is the value for remote.ClientConfig.RawBaseURL.
func (s *Server) RawBaseURL() string {
	return s.URL + "/raw"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
