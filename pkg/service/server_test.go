package service

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"
	"github.com/theapemachine/docprovider/pkg/auth"
	"github.com/theapemachine/docprovider/pkg/documents"
	"github.com/theapemachine/docprovider/pkg/errors"
	"github.com/theapemachine/docprovider/pkg/metrics"
	"github.com/theapemachine/docprovider/pkg/notify"
)

var baseID = documents.DocumentID("docs", "")

func newDocumentServer(authorizer documents.Authorizer, opts ...Option) (*Server, afero.Fs) {
	fs := afero.NewMemMapFs()
	hub := notify.NewHub()
	ops := metrics.NewOperations()

	providerOpts := []documents.Option{
		documents.WithFilesystem(fs),
		documents.WithNotifier(hub),
		documents.WithMetrics(ops),
	}

	if authorizer != nil {
		providerOpts = append(providerOpts, documents.WithAuthorizer(authorizer))
	}

	provider, err := documents.NewProvider([]documents.RootConfig{
		{ID: "docs", Title: "Documents", Path: "/data/docs", Flags: documents.DefaultRootFlags},
		{ID: "secret", Title: "Secret", Path: "/data/secret", Flags: documents.DefaultRootFlags},
	}, providerOpts...)
	So(err, ShouldBeNil)

	So(afero.WriteFile(fs, "/data/docs/a.txt", []byte("0123456789"), 0o644), ShouldBeNil)
	So(fs.Mkdir("/data/docs/b", 0o755), ShouldBeNil)

	return NewServer(provider, hub, append([]Option{WithMetrics(ops)}, opts...)...), fs
}

func do(srv *Server, method, target, body string, header ...string) (*http.Response, []byte) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := srv.App().Test(req)
	So(err, ShouldBeNil)

	data, err := io.ReadAll(resp.Body)
	So(err, ShouldBeNil)
	resp.Body.Close()

	return resp, data
}

func call(srv *Server, method string, params any, out any, header ...string) *errors.RpcError {
	raw, _ := json.Marshal(params)
	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":%q,"params":%s}`, method, raw)

	resp, data := do(srv, http.MethodPost, "/rpc", body, header...)
	So(resp.StatusCode, ShouldEqual, http.StatusOK)

	var envelope struct {
		Result json.RawMessage  `json:"result"`
		Error  *errors.RpcError `json:"error"`
	}
	So(json.Unmarshal(data, &envelope), ShouldBeNil)

	if envelope.Error != nil {
		return envelope.Error
	}

	if out != nil {
		So(json.Unmarshal(envelope.Result, out), ShouldBeNil)
	}

	return nil
}

func TestServerRoutes(t *testing.T) {
	Convey("Given a server without auth", t, func() {
		srv, fs := newDocumentServer(nil)

		Convey("Then the health endpoints answer", func() {
			resp, body := do(srv, http.MethodGet, "/", "")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(string(body), ShouldEqual, "OK")

			resp, _ = do(srv, http.MethodGet, "/livez", "")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("Then the roots are listed", func() {
			resp, body := do(srv, http.MethodGet, "/.well-known/roots.json", "")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var roots []documents.Root
			So(json.Unmarshal(body, &roots), ShouldBeNil)
			So(roots, ShouldHaveLength, 2)
			So(roots[0].DocumentID, ShouldEqual, baseID)
		})

		Convey("When listing children over REST", func() {
			resp, body := do(srv, http.MethodGet, "/documents/"+baseID+"/children?order=-name", "")

			var docs []documents.Document
			So(json.Unmarshal(body, &docs), ShouldBeNil)

			Convey("Then both entries come back in the requested order", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(docs, ShouldHaveLength, 2)
				So(docs[0].DisplayName, ShouldEqual, "b")
				So(docs[1].Size, ShouldEqual, 10)
			})

			Convey("Then listing the file is refused", func() {
				resp, _ := do(srv, http.MethodGet, "/documents/"+docs[1].ID+"/children", "")
				So(resp.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
			})

			Convey("Then its content can be read", func() {
				resp, body := do(srv, http.MethodGet, "/documents/"+docs[1].ID+"/content", "")
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Content-Type"), ShouldEqual, "text/plain")
				So(string(body), ShouldEqual, "0123456789")
			})

			Convey("Then its content can be replaced and appended to", func() {
				resp, _ := do(srv, http.MethodPut, "/documents/"+docs[1].ID+"/content", "hello")
				So(resp.StatusCode, ShouldEqual, http.StatusOK)

				resp, _ = do(srv, http.MethodPut, "/documents/"+docs[1].ID+"/content?mode=wa", " world")
				So(resp.StatusCode, ShouldEqual, http.StatusOK)

				data, _ := afero.ReadFile(fs, "/data/docs/a.txt")
				So(string(data), ShouldEqual, "hello world")

				resp, _ = do(srv, http.MethodPut, "/documents/"+docs[1].ID+"/content?mode=r", "x")
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then it can be deleted", func() {
				resp, _ := do(srv, http.MethodDelete, "/documents/"+docs[1].ID, "")
				So(resp.StatusCode, ShouldEqual, http.StatusNoContent)

				resp, _ = do(srv, http.MethodGet, "/documents/"+docs[1].ID, "")
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When creating over REST", func() {
			resp, body := do(srv, http.MethodPost, "/documents/"+baseID+"/children",
				`{"mimeType":"vnd.android.document/directory","displayName":"sub"}`)

			Convey("Then the new directory is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)

				var doc documents.Document
				So(json.Unmarshal(body, &doc), ShouldBeNil)
				So(doc.DisplayName, ShouldEqual, "sub")
				So(doc.IsDir(), ShouldBeTrue)
			})

			Convey("Then a second create collides", func() {
				resp, body := do(srv, http.MethodPost, "/documents/"+baseID+"/children",
					`{"mimeType":"vnd.android.document/directory","displayName":"sub"}`)
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
				So(string(body), ShouldContainSubstring, "already exists")
			})
		})

		Convey("Then unknown and path-like IDs are not found", func() {
			resp, _ := do(srv, http.MethodGet, "/documents/a.txt", "")
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then search and recents work per root", func() {
			resp, body := do(srv, http.MethodGet, "/roots/docs/search?q=A.T", "")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, "a.txt")

			resp, _ = do(srv, http.MethodGet, "/roots/docs/search?q=a&limit=-1", "")
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)

			resp, body = do(srv, http.MethodGet, "/roots/docs/recent", "")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, "a.txt")

			resp, _ = do(srv, http.MethodGet, "/roots/nope", "")
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then operations show up in the metrics", func() {
			do(srv, http.MethodGet, "/.well-known/roots.json", "")

			resp, body := do(srv, http.MethodGet, "/metrics", "")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, `"roots"`)
		})

		Convey("Then watching an unknown parent is refused", func() {
			resp, _ := do(srv, http.MethodGet, "/events?parent=nope", "")
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServerRPC(t *testing.T) {
	Convey("Given a server without auth", t, func() {
		srv, _ := newDocumentServer(nil)

		Convey("When walking the tree over JSON-RPC", func() {
			var docs []documents.Document
			So(call(srv, "documents/children", map[string]string{"parentId": baseID}, &docs), ShouldBeNil)
			So(docs, ShouldHaveLength, 2)

			Convey("Then the parent relation holds one way", func() {
				var yes, no bool
				So(call(srv, "documents/isChild", map[string]string{"parentId": baseID, "childId": docs[1].ID}, &yes), ShouldBeNil)
				So(call(srv, "documents/isChild", map[string]string{"parentId": docs[1].ID, "childId": baseID}, &no), ShouldBeNil)
				So(yes, ShouldBeTrue)
				So(no, ShouldBeFalse)
			})

			Convey("Then a created document round-trips", func() {
				var created documents.Document
				So(call(srv, "documents/create", map[string]string{
					"parentId":    docs[1].ID,
					"mimeType":    "text/markdown",
					"displayName": "notes.md",
				}, &created), ShouldBeNil)

				var got documents.Document
				So(call(srv, "documents/get", map[string]string{"documentId": created.ID}, &got), ShouldBeNil)
				So(got.DisplayName, ShouldEqual, "notes.md")
			})

			Convey("Then errors keep their kind", func() {
				rpcErr := call(srv, "documents/children", map[string]string{"parentId": docs[0].ID}, nil)
				So(rpcErr, ShouldNotBeNil)
				So(rpcErr.Code, ShouldEqual, errors.ErrUnsupported.Code)

				rpcErr = call(srv, "documents/get", map[string]string{"documentId": "/data/docs/a.txt"}, nil)
				So(rpcErr.Code, ShouldEqual, errors.ErrDocumentNotFound.Code)

				rpcErr = call(srv, "documents/create", map[string]string{"parentId": baseID, "mimeType": "text/plain", "displayName": "../x"}, nil)
				So(rpcErr.Code, ShouldEqual, errors.ErrInvalidParams.Code)

				rpcErr = call(srv, "documents/fly", map[string]string{}, nil)
				So(rpcErr.Code, ShouldEqual, errors.ErrMethodNotFound.Code)
			})
		})
	})
}

func TestServerAuth(t *testing.T) {
	Convey("Given a server requiring tokens", t, func() {
		svc := auth.NewService("0123456789abcdef", 100)
		srv, _ := newDocumentServer(auth.Authorized, WithAuth(svc))

		Convey("When no token is sent", func() {
			resp, body := do(srv, http.MethodGet, "/.well-known/roots.json", "")

			Convey("Then no roots are visible", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(string(body)), ShouldEqual, "[]")
			})
		})

		Convey("When a bad token is sent", func() {
			resp, _ := do(srv, http.MethodGet, "/.well-known/roots.json", "", "Authorization", "Bearer nonsense")

			Convey("Then the request is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When a token is refreshed and its successor revoked", func() {
			tok, err := svc.IssueToken("bob")
			So(err, ShouldBeNil)

			resp, body := do(srv, http.MethodPost, "/auth/refresh", `{"refreshToken":"`+tok.RefreshToken+`"}`)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var fresh auth.TokenInfo
			So(json.Unmarshal(body, &fresh), ShouldBeNil)
			So(fresh.Token, ShouldNotEqual, tok.Token)

			Convey("Then the replaced token and the spent refresh token are refused", func() {
				resp, _ := do(srv, http.MethodGet, "/.well-known/roots.json", "", "Authorization", "Bearer "+tok.Token)
				So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)

				resp, _ = do(srv, http.MethodPost, "/auth/refresh", `{"refreshToken":"`+tok.RefreshToken+`"}`)
				So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
			})

			Convey("Then revoking the new token locks it out", func() {
				bearer := "Bearer " + fresh.Token

				resp, _ := do(srv, http.MethodGet, "/.well-known/roots.json", "", "Authorization", bearer)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)

				resp, _ = do(srv, http.MethodPost, "/auth/revoke", "", "Authorization", bearer)
				So(resp.StatusCode, ShouldEqual, http.StatusNoContent)

				resp, body := do(srv, http.MethodGet, "/.well-known/roots.json", "", "Authorization", bearer)
				So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
				So(string(body), ShouldContainSubstring, "revoked")
			})
		})

		Convey("When revoking without a token", func() {
			resp, _ := do(srv, http.MethodPost, "/auth/revoke", "")

			Convey("Then it is refused", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When a token limited to one root is sent", func() {
			tok, err := svc.IssueToken("alice", "docs")
			So(err, ShouldBeNil)
			bearer := "Bearer " + tok.Token

			_, body := do(srv, http.MethodGet, "/.well-known/roots.json", "", "Authorization", bearer)

			var roots []documents.Root
			So(json.Unmarshal(body, &roots), ShouldBeNil)

			Convey("Then only that root is visible", func() {
				So(roots, ShouldHaveLength, 1)
				So(roots[0].ID, ShouldEqual, "docs")
			})

			Convey("Then the other root's documents are not found", func() {
				resp, _ := do(srv, http.MethodGet, "/documents/"+documents.DocumentID("secret", "")+"/children", "", "Authorization", bearer)
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)

				rpcErr := call(srv, "roots/get", map[string]string{"rootId": "secret"}, nil, "Authorization", bearer)
				So(rpcErr.Code, ShouldEqual, errors.ErrDocumentNotFound.Code)
			})
		})
	})
}
