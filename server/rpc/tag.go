package rpc

import (
	"context"
	"time"

	digest "github.com/opencontainers/go-digest"
	"google.golang.org/grpc"

	"github.com/spkrepo/spk/storage/cas"
)

// TagEntry mirrors cas.Entry over the wire.
type TagEntry struct {
	Name string `json:"name"`
	Dir  bool   `json:"dir"`
}

// TagRecord mirrors cas.Tag over the wire.
type TagRecord struct {
	Path   string        `json:"path"`
	Target digest.Digest `json:"target"`
	Parent digest.Digest `json:"parent,omitempty"`
	Time   time.Time     `json:"time"`
	User   string        `json:"user,omitempty"`
}

func tagRecordOf(t cas.Tag) *TagRecord {
	return &TagRecord{Path: t.Path, Target: t.Target, Parent: t.Parent, Time: t.Time, User: t.User}
}

// ListTagsRequest names a tag folder to list (spec §4.5 tag service "list").
type ListTagsRequest struct {
	Folder string `json:"folder"`
}

// ListTagsResponse is the listing of ListTagsRequest.Folder's children.
type ListTagsResponse struct {
	Entries []TagEntry `json:"entries"`
}

// ResolveTagRequest names a tag path to resolve.
type ResolveTagRequest struct {
	Path string `json:"path"`
}

// PushTagRequest names a tag path and the digest it should point at.
type PushTagRequest struct {
	Path   string        `json:"path"`
	Target digest.Digest `json:"target"`
}

// RemoveTagRequest names a tag path whose stream should be deleted.
type RemoveTagRequest struct {
	Path string `json:"path"`
}

// RemoveTagResponse is an empty acknowledgement.
type RemoveTagResponse struct{}

// tagServer is the handler backing TagServiceDesc, delegating directly to
// the CAS (spec §4.5: "Tag service (gRPC): list, resolve, push, remove
// tags; delegates to the CAS.").
type tagServer struct {
	store cas.Store
}

func (s *tagServer) list(ctx context.Context, req *ListTagsRequest) (*ListTagsResponse, error) {
	entries, err := s.store.LsTags(ctx, req.Folder)
	if err != nil {
		return nil, err
	}
	out := make([]TagEntry, len(entries))
	for i, e := range entries {
		out[i] = TagEntry{Name: e.Name, Dir: e.Kind == cas.EntryFolder}
	}
	return &ListTagsResponse{Entries: out}, nil
}

func (s *tagServer) resolve(ctx context.Context, req *ResolveTagRequest) (*TagRecord, error) {
	tag, err := s.store.ResolveTag(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	return tagRecordOf(tag), nil
}

func (s *tagServer) push(ctx context.Context, req *PushTagRequest) (*TagRecord, error) {
	tag, err := s.store.PushTag(ctx, req.Path, req.Target)
	if err != nil {
		return nil, err
	}
	return tagRecordOf(tag), nil
}

func (s *tagServer) remove(ctx context.Context, req *RemoveTagRequest) (*RemoveTagResponse, error) {
	if err := s.store.RemoveTagStream(ctx, req.Path); err != nil {
		return nil, err
	}
	return &RemoveTagResponse{}, nil
}

func listTagsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListTagsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*tagServer)
	if interceptor == nil {
		return s.list(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/spk.rpc.TagService/List"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.list(ctx, req.(*ListTagsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func resolveTagHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ResolveTagRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*tagServer)
	if interceptor == nil {
		return s.resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/spk.rpc.TagService/Resolve"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.resolve(ctx, req.(*ResolveTagRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func pushTagHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PushTagRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*tagServer)
	if interceptor == nil {
		return s.push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/spk.rpc.TagService/Push"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.push(ctx, req.(*PushTagRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func removeTagHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RemoveTagRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*tagServer)
	if interceptor == nil {
		return s.remove(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/spk.rpc.TagService/Remove"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.remove(ctx, req.(*RemoveTagRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// TagServiceDesc is the hand-registered grpc.ServiceDesc for the tag
// service (spec §4.5).
var TagServiceDesc = grpc.ServiceDesc{
	ServiceName: "spk.rpc.TagService",
	HandlerType: (*tagServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: listTagsHandler},
		{MethodName: "Resolve", Handler: resolveTagHandler},
		{MethodName: "Push", Handler: pushTagHandler},
		{MethodName: "Remove", Handler: removeTagHandler},
	},
	Metadata: "spk/rpc/tag.proto",
}

// RegisterTagService registers the tag service on srv, delegating directly
// to store.
func RegisterTagService(srv *grpc.Server, store cas.Store) {
	srv.RegisterService(&TagServiceDesc, &tagServer{store: store})
}
