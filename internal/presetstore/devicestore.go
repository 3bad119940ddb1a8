package presetstore

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash"
	"github.com/dgraph-io/badger"
	"github.com/iancoleman/strcase"
)

// DeviceRecord is what the bridge remembers about one physical HID
// device across restarts: the content hash of the report descriptor
// last seen from it (so a re-plug of the same device/firmware skips a
// redundant ParseDescriptor call) and the joystick index the parser
// assigned its Application collection, so pad identity stays stable
// across re-parses of an unchanged descriptor.
type DeviceRecord struct {
	VendorID          uint16 `json:"vendorId"`
	ProductID         uint16 `json:"productId"`
	DescriptorHash    uint64 `json:"descriptorHash"`
	LastJoystickIndex uint8  `json:"lastJoystickIndex"`
}

// DeviceStore persists DeviceRecords in the agent's badger database,
// grounded on the hid/inputs and hid/outputs key conventions in
// internal/hidsvc.Service.
type DeviceStore struct {
	db *badger.DB
}

func OpenDeviceStore(db *badger.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

// DescriptorHash is the key DeviceRecord.DescriptorHash is compared
// against; exported so callers can decide whether to re-parse a
// descriptor before touching the store at all.
func DescriptorHash(desc []byte) uint64 {
	return xxhash.Sum64(desc)
}

func deviceKey(vendorID, productID uint16) []byte {
	return []byte(strcase.ToSnake(fmt.Sprintf("device %04x %04x", vendorID, productID)))
}

func (s *DeviceStore) Get(vendorID, productID uint16) (DeviceRecord, bool, error) {
	var rec DeviceRecord
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(deviceKey(vendorID, productID))
		switch err {
		case badger.ErrKeyNotFound:
			return nil
		case nil:
			found = true
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
		default:
			return err
		}
	})
	if err != nil {
		return DeviceRecord{}, false, fmt.Errorf("presetstore: get device record: %w", err)
	}
	return rec, found, nil
}

func (s *DeviceStore) Put(rec DeviceRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("presetstore: marshal device record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(deviceKey(rec.VendorID, rec.ProductID), b)
	})
	if err != nil {
		return fmt.Errorf("presetstore: put device record: %w", err)
	}
	return nil
}
