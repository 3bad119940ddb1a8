package presetstore

import (
	"testing"

	"github.com/dgraph-io/badger"
)

func openTestDeviceStore(t *testing.T) *DeviceStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("badger.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return OpenDeviceStore(db)
}

func TestDeviceStoreGetMissing(t *testing.T) {
	s := openTestDeviceStore(t)
	_, found, err := s.Get(0x054c, 0x09cc)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatal("Get on empty store: want found=false")
	}
}

func TestDeviceStorePutGetRoundtrip(t *testing.T) {
	s := openTestDeviceStore(t)
	rec := DeviceRecord{VendorID: 0x054c, ProductID: 0x09cc, DescriptorHash: 0xdeadbeef, LastJoystickIndex: 2}
	if err := s.Put(rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, found, err := s.Get(0x054c, 0x09cc)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("Get after Put: want found=true")
	}
	if got != rec {
		t.Fatalf("Get() = %+v, want %+v", got, rec)
	}
}

func TestDescriptorHashStable(t *testing.T) {
	desc := []byte{0x05, 0x01, 0x09, 0x05, 0xA1, 0x01, 0xC0}
	if DescriptorHash(desc) != DescriptorHash(desc) {
		t.Fatal("DescriptorHash not stable across calls")
	}
	if DescriptorHash(desc) == DescriptorHash(append(desc, 0x00)) {
		t.Fatal("DescriptorHash did not change for a different descriptor")
	}
}
