package securestorage_test

import (
	"context"
	"testing"

	"github.com/familyvault/familyvault-core/internal/securestorage"
)

func TestStoreRetrieveRoundTrip(t *testing.T) {
	ctx := context.Background()
	fb, err := securestorage.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	want := []byte{1, 2, 3, 4, 0, 255}
	if err := fb.Store(ctx, securestorage.KeyFamilySecret, want); err != nil {
		t.Fatal(err)
	}

	got, ok, err := fb.Retrieve(ctx, securestorage.KeyFamilySecret)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected key to exist")
	}
	if string(got) != string(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRemoveThenRetrieveReturnsNone(t *testing.T) {
	ctx := context.Background()
	fb, err := securestorage.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	fb.Store(ctx, securestorage.KeyDeviceID, []byte("device-1"))
	if err := fb.Remove(ctx, securestorage.KeyDeviceID); err != nil {
		t.Fatal(err)
	}

	_, ok, err := fb.Retrieve(ctx, securestorage.KeyDeviceID)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected key to be gone after Remove")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fb1, err := securestorage.NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := securestorage.StoreString(ctx, fb1, securestorage.KeyDeviceName, "kitchen-tablet"); err != nil {
		t.Fatal(err)
	}

	fb2, err := securestorage.NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := securestorage.RetrieveString(ctx, fb2, securestorage.KeyDeviceName)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got != "kitchen-tablet" {
		t.Fatalf("got (%q, %v), want (kitchen-tablet, true)", got, ok)
	}
}
