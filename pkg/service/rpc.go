package service

import (
	"context"
	"encoding/json"

	"github.com/theapemachine/docprovider/pkg/errors"
)

type idParams struct {
	ID string `json:"documentId"`
}

type rootParams struct {
	RootID string `json:"rootId"`
	Query  string `json:"query,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type childrenParams struct {
	ParentID string `json:"parentId"`
	Order    string `json:"order,omitempty"`
}

type isChildParams struct {
	ParentID string `json:"parentId"`
	ChildID  string `json:"childId"`
}

type createParams struct {
	ParentID    string `json:"parentId"`
	MimeType    string `json:"mimeType"`
	DisplayName string `json:"displayName"`
}

/*
registerRPCHandlers maps every provider operation onto a JSON-RPC method.
Provider errors keep their kind through errors.ToRPC.
*/
func (srv *Server) registerRPCHandlers() {
	srv.rpc.Register("roots/list", func(ctx context.Context, _ json.RawMessage) (any, *errors.RpcError) {
		roots, err := srv.provider.Roots(ctx)
		if err != nil {
			return nil, errors.ToRPC(err)
		}
		return roots, nil
	})

	srv.rpc.Register("roots/get", func(ctx context.Context, raw json.RawMessage) (any, *errors.RpcError) {
		var p rootParams
		if rpcErr := bind(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}

		root, err := srv.provider.Root(ctx, p.RootID)
		if err != nil {
			return nil, errors.ToRPC(err)
		}
		return root, nil
	})

	srv.rpc.Register("documents/get", func(ctx context.Context, raw json.RawMessage) (any, *errors.RpcError) {
		var p idParams
		if rpcErr := bind(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}

		doc, err := srv.provider.Document(ctx, p.ID)
		if err != nil {
			return nil, errors.ToRPC(err)
		}
		return doc, nil
	})

	srv.rpc.Register("documents/children", func(ctx context.Context, raw json.RawMessage) (any, *errors.RpcError) {
		var p childrenParams
		if rpcErr := bind(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}

		docs, err := srv.provider.Children(ctx, p.ParentID, p.Order)
		if err != nil {
			return nil, errors.ToRPC(err)
		}
		return docs, nil
	})

	srv.rpc.Register("documents/isChild", func(ctx context.Context, raw json.RawMessage) (any, *errors.RpcError) {
		var p isChildParams
		if rpcErr := bind(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}

		return srv.provider.IsChild(ctx, p.ParentID, p.ChildID), nil
	})

	srv.rpc.Register("documents/create", func(ctx context.Context, raw json.RawMessage) (any, *errors.RpcError) {
		var p createParams
		if rpcErr := bind(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}

		id, err := srv.provider.Create(ctx, p.ParentID, p.MimeType, p.DisplayName)
		if err != nil {
			return nil, errors.ToRPC(err)
		}

		doc, err := srv.provider.Document(ctx, id)
		if err != nil {
			return nil, errors.ToRPC(err)
		}
		return doc, nil
	})

	srv.rpc.Register("documents/delete", func(ctx context.Context, raw json.RawMessage) (any, *errors.RpcError) {
		var p idParams
		if rpcErr := bind(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}

		if err := srv.provider.Delete(ctx, p.ID); err != nil {
			return nil, errors.ToRPC(err)
		}
		return true, nil
	})

	srv.rpc.Register("documents/search", func(ctx context.Context, raw json.RawMessage) (any, *errors.RpcError) {
		var p rootParams
		if rpcErr := bind(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}

		docs, err := srv.provider.Search(ctx, p.RootID, p.Query, p.Limit)
		if err != nil {
			return nil, errors.ToRPC(err)
		}
		return docs, nil
	})

	srv.rpc.Register("documents/recent", func(ctx context.Context, raw json.RawMessage) (any, *errors.RpcError) {
		var p rootParams
		if rpcErr := bind(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}

		docs, err := srv.provider.Recent(ctx, p.RootID, p.Limit)
		if err != nil {
			return nil, errors.ToRPC(err)
		}
		return docs, nil
	})
}
