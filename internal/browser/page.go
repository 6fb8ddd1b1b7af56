package browser

import (
	"net"
	"net/http"
	"net/url"
)

const blankPage = `<!DOCTYPE html><html><head><meta charset="utf-8"><title>thumbmark</title></head><body></body></html>`

// pageServer serves the blank document probes run on. A real http origin
// gives them the same storage and permission behavior as an ordinary page.
type pageServer struct {
	listener net.Listener
	server   *http.Server
	done     chan struct{}
}

func newPageServer() (*pageServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &pageServer{
		listener: ln,
		done:     make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handlePage)
	s.server = &http.Server{Handler: mux}
	go func() {
		s.server.Serve(ln)
		close(s.done)
	}()
	return s, nil
}

// URL returns the page address.
func (s *pageServer) URL() string {
	u := url.URL{
		Scheme: "http",
		Host:   s.listener.Addr().String(),
		Path:   "/",
	}
	return u.String()
}

// Close shuts the server down and waits for it to exit.
func (s *pageServer) Close() error {
	err := s.server.Close()
	<-s.done
	return err
}

func (s *pageServer) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(blankPage))
}
