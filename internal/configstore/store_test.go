package configstore

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/exeteres/wgconf/internal/cli/config"
	"github.com/exeteres/wgconf/internal/seal"
	"github.com/exeteres/wgconf/internal/wgconf"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	testPrivateKey = "YAnz5TF+lXXJte14tji3zlMNftqN9xFSeRCFKtheBGY="
	testPublicKey  = "xTIBA5rboUvnH4htodjb6e697QjLERt1NAB4mZqp8Dg="
)

var sampleText = "[Interface]\nPrivateKey = " + testPrivateKey + "\nListenPort = 51820\nAddress = 10.0.0.1/24\n\n" +
	"[Peer]\nPublicKey = " + testPublicKey + "\nAllowedIPs = 10.0.0.2/32\n"

type fakeKV struct {
	data map[string][]byte
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) Put(_ context.Context, key string, value []byte) error {
	f.data[key] = value
	return nil
}

func (f *fakeKV) Delete(_ context.Context, key string) (bool, error) {
	_, ok := f.data[key]
	delete(f.data, key)
	return ok, nil
}

func (f *fakeKV) Keys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

type watchingKV struct {
	*fakeKV
	ch chan clientv3.WatchResponse
}

func (w *watchingKV) Watch(_ context.Context, _ string) clientv3.WatchChan {
	return w.ch
}

func putEvent(value string, rev int64) clientv3.WatchResponse {
	return clientv3.WatchResponse{Events: []*clientv3.Event{{
		Type: mvccpb.PUT,
		Kv:   &mvccpb.KeyValue{Key: []byte(keyPrefix + "wg0"), Value: []byte(value), ModRevision: rev},
	}}}
}

func TestPutGet_Plain(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, Options{}, nil)

	if err := s.Put(context.Background(), "wg0", sampleText); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if got := string(kv.data["wgconf/configs/wg0"]); got != sampleText {
		t.Fatalf("unexpected stored value: %q", got)
	}
	got, err := s.Get(context.Background(), "wg0")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != sampleText {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestPut_RejectsInvalidConfiguration(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, Options{}, nil)

	err := s.Put(context.Background(), "wg0", "[Interface]\nListenPort = 1\n")
	var cfgErr *wgconf.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kv.data) != 0 {
		t.Fatalf("nothing should be stored: %#v", kv.data)
	}
}

func TestPut_FormatSpecificValidation(t *testing.T) {
	text := strings.Replace(sampleText, "Address = 10.0.0.1/24\n", "Address = 10.0.0.1/24\nJc = 4\n", 1)

	if err := New(newFakeKV(), Options{}, nil).Put(context.Background(), "wg0", text); err == nil {
		t.Fatalf("expected plain WireGuard store to reject Jc")
	}
	if err := New(newFakeKV(), Options{Format: config.FormatAmnezia}, nil).Put(context.Background(), "wg0", text); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInvalidNames(t *testing.T) {
	s := New(newFakeKV(), Options{}, nil)
	for _, name := range []string{"", "0wg", "wg/0", "../x", "wg 0"} {
		if err := s.Put(context.Background(), name, sampleText); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Put(%q): unexpected error: %v", name, err)
		}
		if _, err := s.Get(context.Background(), name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Get(%q): unexpected error: %v", name, err)
		}
	}
}

func TestGetDelete_NotFound(t *testing.T) {
	s := New(newFakeKV(), Options{}, nil)
	if _, err := s.Get(context.Background(), "wg0"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Delete(context.Background(), "wg0"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNamesAndDelete(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, Options{}, nil)
	for _, name := range []string{"office", "home", "wg0"} {
		if err := s.Put(context.Background(), name, sampleText); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}
	kv.data["wgconf/configs/bad/name"] = []byte("x")

	names, err := s.Names(context.Background())
	if err != nil {
		t.Fatalf("Names error: %v", err)
	}
	if strings.Join(names, ",") != "home,office,wg0" {
		t.Fatalf("unexpected names: %#v", names)
	}

	if err := s.Delete(context.Background(), "home"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	names, _ = s.Names(context.Background())
	if strings.Join(names, ",") != "office,wg0" {
		t.Fatalf("unexpected names after delete: %#v", names)
	}
}

func TestSealed(t *testing.T) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	kv := newFakeKV()
	writer := New(kv, Options{Recipients: []age.Recipient{id.Recipient()}}, nil)
	if err := writer.Put(context.Background(), "wg0", sampleText); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	stored := string(kv.data["wgconf/configs/wg0"])
	if !seal.IsSealed(stored) || strings.Contains(stored, testPrivateKey) {
		t.Fatalf("stored value is not sealed: %q", stored)
	}

	if _, err := New(kv, Options{}, nil).Get(context.Background(), "wg0"); !errors.Is(err, ErrNoIdentities) {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := New(kv, Options{Identities: []age.Identity{id}}, nil).Get(context.Background(), "wg0")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != sampleText {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestWatch_Unsupported(t *testing.T) {
	s := New(newFakeKV(), Options{}, nil)
	err := s.Watch(context.Background(), "wg0", func(string) error { return nil })
	if !errors.Is(err, ErrWatchUnsupported) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWatch_SkipsInvalidRevisions(t *testing.T) {
	kv := &watchingKV{fakeKV: newFakeKV(), ch: make(chan clientv3.WatchResponse, 4)}
	var logs bytes.Buffer
	s := New(kv, Options{}, log.New(&logs, "", 0))

	second := strings.Replace(sampleText, "51820", "51821", 1)
	kv.ch <- putEvent(sampleText, 2)
	kv.ch <- putEvent("[Interface]\n", 3)
	kv.ch <- clientv3.WatchResponse{Events: []*clientv3.Event{{Type: mvccpb.DELETE, Kv: &mvccpb.KeyValue{}}}}
	kv.ch <- putEvent(second, 4)
	close(kv.ch)

	var got []string
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(context.Background(), "wg0", func(text string) error {
			got = append(got, text)
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Watch did not return")
	}

	if len(got) != 2 || got[0] != sampleText || got[1] != second {
		t.Fatalf("unexpected revisions: %#v", got)
	}
	if !strings.Contains(logs.String(), `configuration revision invalid name="wg0" revision=3`) {
		t.Fatalf("unexpected logs: %s", logs.String())
	}
}

func TestWatch_StopsOnContextDone(t *testing.T) {
	kv := &watchingKV{fakeKV: newFakeKV(), ch: make(chan clientv3.WatchResponse)}
	s := New(kv, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Watch(ctx, "wg0", func(string) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
