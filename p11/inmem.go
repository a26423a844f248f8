package p11

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/miekg/pkcs11"
)

// MemModule is a deterministic in-memory Module for tests and for the
// `inmem:` configuration scheme. It simulates the size-then-fill
// attribute convention with the unavailable sentinel, the strict
// three-call find protocol, PIN checking with an optional protected
// authentication path, and real RSA PKCS#1 v1.5 sign/verify.
//
// Operations can be marked unsupported to exercise degraded paths.
type MemModule struct {
	mu sync.Mutex

	tokens    map[uint]*MemToken
	slotOrder []uint
	sessions  map[pkcs11.SessionHandle]*memSession

	nextSession pkcs11.SessionHandle
	nextHandle  pkcs11.ObjectHandle
	unsupported map[string]bool

	// Stats counts protocol events for assertions in tests.
	Stats MemStats
}

// MemStats counts provider calls of interest.
type MemStats struct {
	FindInit       int
	FindNext       int
	FindFinal      int
	NextAfterEmpty int
	AttrProbes     int
	AttrFills      int
	Finalized      int
}

// MemToken is one slot's token.
type MemToken struct {
	SlotInfo   pkcs11.SlotInfo
	TokenInfo  pkcs11.TokenInfo
	Mechanisms []uint
	MechInfo   map[uint]pkcs11.MechanismInfo
	PIN        string
	Present    bool

	objects map[pkcs11.ObjectHandle]*MemObject
	order   []pkcs11.ObjectHandle
}

// MemObject is a provider-managed object described by raw attribute
// values. Attributes listed in Unavailable report the sentinel
// length.
type MemObject struct {
	Handle      pkcs11.ObjectHandle
	Attrs       map[uint][]byte
	Unavailable map[uint]bool

	priv *rsa.PrivateKey
	pub  *rsa.PublicKey
}

type memFind struct {
	matches []pkcs11.ObjectHandle
	pos     int
	done    bool
}

type memSession struct {
	slot     uint
	loggedIn bool
	find     *memFind

	signKey    *MemObject
	signMech   uint
	signActive bool

	verifyKey    *MemObject
	verifyMech   uint
	verifyActive bool
}

// NewMemModule creates an empty in-memory module; add tokens with
// AddToken.
func NewMemModule() *MemModule {
	return &MemModule{
		tokens:      make(map[uint]*MemToken),
		sessions:    make(map[pkcs11.SessionHandle]*memSession),
		nextSession: 1000,
		nextHandle:  1,
		unsupported: make(map[string]bool),
	}
}

// NewSampleModule builds a module with one slot holding a token with
// an RSA key pair (id "id-1"), a certificate and a data object. PIN is
// "1234".
func NewSampleModule() (*MemModule, error) {
	m := NewMemModule()
	tok := m.AddToken(1, "inmem", "1234", 0)
	tok.Mechanisms = []uint{pkcs11.CKM_RSA_PKCS, pkcs11.CKM_SHA256_RSA_PKCS}
	tok.MechInfo[pkcs11.CKM_RSA_PKCS] = pkcs11.MechanismInfo{
		MinKeySize: 1024,
		MaxKeySize: 4096,
		Flags:      pkcs11.CKF_SIGN | pkcs11.CKF_VERIFY,
	}

	if _, _, err := m.AddRSAKeyPair(1, "id-1", "sample", 1024); err != nil {
		return nil, err
	}
	m.AddObject(1, map[uint][]byte{
		pkcs11.CKA_CLASS:            ulongBytes(pkcs11.CKO_CERTIFICATE),
		pkcs11.CKA_CERTIFICATE_TYPE: ulongBytes(pkcs11.CKC_X_509),
		pkcs11.CKA_ID:               []byte("id-1"),
		pkcs11.CKA_VALUE:            bytes.Repeat([]byte{0x30}, 512),
		pkcs11.CKA_SUBJECT:          []byte{0x30, 0x00},
		pkcs11.CKA_ISSUER:           []byte{0x30, 0x00},
	})
	m.AddObject(1, map[uint][]byte{
		pkcs11.CKA_CLASS:       ulongBytes(pkcs11.CKO_DATA),
		pkcs11.CKA_APPLICATION: []byte("sample-app\x00\x00"),
		pkcs11.CKA_OBJECT_ID:   []byte{0x06, 0x03, 0x55, 0x04, 0x03},
		pkcs11.CKA_VALUE:       []byte("opaque"),
	})
	return m, nil
}

// AddToken registers a token on a slot. tokenFlags are OR-ed into the
// token's flags, e.g. CKF_PROTECTED_AUTHENTICATION_PATH.
func (m *MemModule) AddToken(slotID uint, label, pin string, tokenFlags uint) *MemToken {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok := &MemToken{
		SlotInfo: pkcs11.SlotInfo{
			SlotDescription: "In-memory slot",
			ManufacturerID:  "p11tool",
			Flags:           pkcs11.CKF_TOKEN_PRESENT,
		},
		TokenInfo: pkcs11.TokenInfo{
			Label:          label,
			ManufacturerID: "p11tool",
			Model:          "inmem",
			SerialNumber:   "0000000000000001",
			Flags:          pkcs11.CKF_TOKEN_INITIALIZED | pkcs11.CKF_USER_PIN_INITIALIZED | tokenFlags,
		},
		MechInfo: make(map[uint]pkcs11.MechanismInfo),
		PIN:      pin,
		Present:  true,
		objects:  make(map[pkcs11.ObjectHandle]*MemObject),
	}
	if pin != "" {
		tok.TokenInfo.Flags |= pkcs11.CKF_LOGIN_REQUIRED
	}
	m.tokens[slotID] = tok
	m.slotOrder = append(m.slotOrder, slotID)
	return tok
}

// AddObject stores an object on a slot's token and returns it.
func (m *MemModule) AddObject(slotID uint, attrs map[uint][]byte) *MemObject {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addObjectLocked(slotID, attrs)
}

func (m *MemModule) addObjectLocked(slotID uint, attrs map[uint][]byte) *MemObject {
	tok := m.tokens[slotID]
	obj := &MemObject{
		Handle:      m.nextHandle,
		Attrs:       attrs,
		Unavailable: make(map[uint]bool),
	}
	m.nextHandle++
	tok.objects[obj.Handle] = obj
	tok.order = append(tok.order, obj.Handle)
	return obj
}

// AddRSAKeyPair generates an RSA key pair and stores the private and
// public key objects sharing the given identifier.
func (m *MemModule) AddRSAKeyPair(slotID uint, id, label string, bits int) (*MemObject, *MemObject, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	priv := m.addObjectLocked(slotID, map[uint][]byte{
		pkcs11.CKA_CLASS:              ulongBytes(pkcs11.CKO_PRIVATE_KEY),
		pkcs11.CKA_ID:                 []byte(id),
		pkcs11.CKA_LABEL:              []byte(label),
		pkcs11.CKA_KEY_TYPE:           ulongBytes(pkcs11.CKK_RSA),
		pkcs11.CKA_KEY_GEN_MECHANISM:  ulongBytes(pkcs11.CKM_RSA_PKCS_KEY_PAIR_GEN),
		pkcs11.CKA_ALLOWED_MECHANISMS: append(ulongBytes(pkcs11.CKM_RSA_PKCS), ulongBytes(pkcs11.CKM_SHA256_RSA_PKCS)...),
		pkcs11.CKA_SUBJECT:            []byte{0x30, 0x00},
	})
	priv.priv = key
	// private key material is never disclosed
	priv.Unavailable[pkcs11.CKA_VALUE] = true

	pub := m.addObjectLocked(slotID, map[uint][]byte{
		pkcs11.CKA_CLASS:              ulongBytes(pkcs11.CKO_PUBLIC_KEY),
		pkcs11.CKA_ID:                 []byte(id),
		pkcs11.CKA_LABEL:              []byte(label),
		pkcs11.CKA_KEY_TYPE:           ulongBytes(pkcs11.CKK_RSA),
		pkcs11.CKA_KEY_GEN_MECHANISM:  ulongBytes(pkcs11.CKM_RSA_PKCS_KEY_PAIR_GEN),
		pkcs11.CKA_ALLOWED_MECHANISMS: append(ulongBytes(pkcs11.CKM_RSA_PKCS), ulongBytes(pkcs11.CKM_SHA256_RSA_PKCS)...),
		pkcs11.CKA_SUBJECT:            []byte{0x30, 0x00},
	})
	pub.pub = &key.PublicKey

	return priv, pub, nil
}

// SetUnsupported marks operations, by method name, as absent from the
// provider's function table.
func (m *MemModule) SetUnsupported(ops ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		m.unsupported[op] = true
	}
}

// SessionCount reports the number of open sessions.
func (m *MemModule) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemModule) check(op string) error {
	if m.unsupported[op] {
		return pkcs11.Error(pkcs11.CKR_FUNCTION_NOT_SUPPORTED)
	}
	return nil
}

// Initialize implements Module
func (m *MemModule) Initialize(opts ...pkcs11.InitializeOption) error {
	return nil
}

// Finalize implements Module
func (m *MemModule) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stats.Finalized++
	m.sessions = make(map[pkcs11.SessionHandle]*memSession)
	return nil
}

// GetInfo implements Module
func (m *MemModule) GetInfo() (pkcs11.Info, error) {
	if err := m.check("GetInfo"); err != nil {
		return pkcs11.Info{}, err
	}
	return pkcs11.Info{
		CryptokiVersion:    pkcs11.Version{Major: 2, Minor: 40},
		ManufacturerID:     "p11tool",
		LibraryDescription: "in-memory token",
		LibraryVersion:     pkcs11.Version{Major: 1, Minor: 0},
	}, nil
}

// GetSlotList implements Module
func (m *MemModule) GetSlotList(tokenPresent bool) ([]uint, error) {
	if err := m.check("GetSlotList"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var slots []uint
	for _, id := range m.slotOrder {
		if tokenPresent && !m.tokens[id].Present {
			continue
		}
		slots = append(slots, id)
	}
	return slots, nil
}

// GetSlotInfo implements Module
func (m *MemModule) GetSlotInfo(slotID uint) (pkcs11.SlotInfo, error) {
	if err := m.check("GetSlotInfo"); err != nil {
		return pkcs11.SlotInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[slotID]
	if !ok {
		return pkcs11.SlotInfo{}, pkcs11.Error(pkcs11.CKR_SLOT_ID_INVALID)
	}
	return tok.SlotInfo, nil
}

// GetTokenInfo implements Module
func (m *MemModule) GetTokenInfo(slotID uint) (pkcs11.TokenInfo, error) {
	if err := m.check("GetTokenInfo"); err != nil {
		return pkcs11.TokenInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[slotID]
	if !ok {
		return pkcs11.TokenInfo{}, pkcs11.Error(pkcs11.CKR_SLOT_ID_INVALID)
	}
	return tok.TokenInfo, nil
}

// GetMechanismList implements Module
func (m *MemModule) GetMechanismList(slotID uint) ([]*pkcs11.Mechanism, error) {
	if err := m.check("GetMechanismList"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[slotID]
	if !ok {
		return nil, pkcs11.Error(pkcs11.CKR_SLOT_ID_INVALID)
	}
	mechs := make([]*pkcs11.Mechanism, 0, len(tok.Mechanisms))
	for _, mt := range tok.Mechanisms {
		mechs = append(mechs, pkcs11.NewMechanism(mt, nil))
	}
	return mechs, nil
}

// GetMechanismInfo implements Module
func (m *MemModule) GetMechanismInfo(slotID uint, mech []*pkcs11.Mechanism) (pkcs11.MechanismInfo, error) {
	if err := m.check("GetMechanismInfo"); err != nil {
		return pkcs11.MechanismInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[slotID]
	if !ok {
		return pkcs11.MechanismInfo{}, pkcs11.Error(pkcs11.CKR_SLOT_ID_INVALID)
	}
	if len(mech) == 0 {
		return pkcs11.MechanismInfo{}, pkcs11.Error(pkcs11.CKR_ARGUMENTS_BAD)
	}
	mi, ok := tok.MechInfo[mech[0].Mechanism]
	if !ok {
		return pkcs11.MechanismInfo{}, pkcs11.Error(pkcs11.CKR_MECHANISM_INVALID)
	}
	return mi, nil
}

// OpenSession implements Module
func (m *MemModule) OpenSession(slotID uint, flags uint) (pkcs11.SessionHandle, error) {
	if err := m.check("OpenSession"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[slotID]; !ok {
		return 0, pkcs11.Error(pkcs11.CKR_SLOT_ID_INVALID)
	}
	if flags&pkcs11.CKF_SERIAL_SESSION == 0 {
		return 0, pkcs11.Error(pkcs11.CKR_SESSION_PARALLEL_NOT_SUPPORTED)
	}
	sh := m.nextSession
	m.nextSession++
	m.sessions[sh] = &memSession{slot: slotID}
	return sh, nil
}

// CloseSession implements Module
func (m *MemModule) CloseSession(sh pkcs11.SessionHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sh]; !ok {
		return pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	delete(m.sessions, sh)
	return nil
}

// GetSessionInfo implements Module
func (m *MemModule) GetSessionInfo(sh pkcs11.SessionHandle) (pkcs11.SessionInfo, error) {
	if err := m.check("GetSessionInfo"); err != nil {
		return pkcs11.SessionInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sh]
	if !ok {
		return pkcs11.SessionInfo{}, pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	state := uint(pkcs11.CKS_RO_PUBLIC_SESSION)
	if s.loggedIn {
		state = pkcs11.CKS_RO_USER_FUNCTIONS
	}
	return pkcs11.SessionInfo{
		SlotID: s.slot,
		State:  state,
		Flags:  pkcs11.CKF_SERIAL_SESSION,
	}, nil
}

// Login implements Module. A token with a protected authentication
// path accepts the null credential; otherwise the PIN must match.
func (m *MemModule) Login(sh pkcs11.SessionHandle, userType uint, pin string) error {
	if err := m.check("Login"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sh]
	if !ok {
		return pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	if s.loggedIn {
		return pkcs11.Error(pkcs11.CKR_USER_ALREADY_LOGGED_IN)
	}
	tok := m.tokens[s.slot]
	if tok.TokenInfo.Flags&pkcs11.CKF_PROTECTED_AUTHENTICATION_PATH != 0 && pin == "" {
		s.loggedIn = true
		return nil
	}
	if pin != tok.PIN {
		return pkcs11.Error(pkcs11.CKR_PIN_INCORRECT)
	}
	s.loggedIn = true
	return nil
}

// Logout implements Module
func (m *MemModule) Logout(sh pkcs11.SessionHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sh]
	if !ok {
		return pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	if !s.loggedIn {
		return pkcs11.Error(pkcs11.CKR_USER_NOT_LOGGED_IN)
	}
	s.loggedIn = false
	return nil
}

// GetAttributeValue implements Module. Retrieval simulates the
// size-then-fill convention per attribute: the declared length is
// computed first, then the value is copied into a fresh buffer of
// that length. Attributes marked unavailable report the sentinel as a
// nil value; attributes the object lacks fail the call.
func (m *MemModule) GetAttributeValue(sh pkcs11.SessionHandle, o pkcs11.ObjectHandle, a []*pkcs11.Attribute) ([]*pkcs11.Attribute, error) {
	if err := m.check("GetAttributeValue"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sh]
	if !ok {
		return nil, pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	obj, ok := m.tokens[s.slot].objects[o]
	if !ok {
		return nil, pkcs11.Error(pkcs11.CKR_OBJECT_HANDLE_INVALID)
	}

	res := make([]*pkcs11.Attribute, 0, len(a))
	for _, req := range a {
		// size query
		m.Stats.AttrProbes++
		if obj.Unavailable[req.Type] {
			res = append(res, &pkcs11.Attribute{Type: req.Type})
			continue
		}
		value, ok := obj.Attrs[req.Type]
		if !ok {
			return nil, pkcs11.Error(pkcs11.CKR_ATTRIBUTE_TYPE_INVALID)
		}
		// fill into a buffer of the declared length
		m.Stats.AttrFills++
		filled := make([]byte, len(value))
		copy(filled, value)
		res = append(res, &pkcs11.Attribute{Type: req.Type, Value: filled})
	}
	return res, nil
}

// FindObjectsInit implements Module
func (m *MemModule) FindObjectsInit(sh pkcs11.SessionHandle, temp []*pkcs11.Attribute) error {
	if err := m.check("FindObjectsInit"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sh]
	if !ok {
		return pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	if s.find != nil {
		return pkcs11.Error(pkcs11.CKR_OPERATION_ACTIVE)
	}

	tok := m.tokens[s.slot]
	find := &memFind{}
	for _, h := range tok.order {
		if matchesTemplate(tok.objects[h], temp) {
			find.matches = append(find.matches, h)
		}
	}
	s.find = find
	m.Stats.FindInit++
	return nil
}

// FindObjects implements Module
func (m *MemModule) FindObjects(sh pkcs11.SessionHandle, max int) ([]pkcs11.ObjectHandle, bool, error) {
	if err := m.check("FindObjects"); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sh]
	if !ok {
		return nil, false, pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	if s.find == nil {
		return nil, false, pkcs11.Error(pkcs11.CKR_OPERATION_NOT_INITIALIZED)
	}
	m.Stats.FindNext++
	if s.find.done {
		// a well-behaved caller stops after the empty batch
		m.Stats.NextAfterEmpty++
		return nil, false, nil
	}

	remaining := len(s.find.matches) - s.find.pos
	n := max
	if remaining < n {
		n = remaining
	}
	batch := s.find.matches[s.find.pos : s.find.pos+n]
	s.find.pos += n
	if n == 0 {
		s.find.done = true
	}
	return batch, false, nil
}

// FindObjectsFinal implements Module
func (m *MemModule) FindObjectsFinal(sh pkcs11.SessionHandle) error {
	if err := m.check("FindObjectsFinal"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sh]
	if !ok {
		return pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	if s.find == nil {
		return pkcs11.Error(pkcs11.CKR_OPERATION_NOT_INITIALIZED)
	}
	s.find = nil
	m.Stats.FindFinal++
	return nil
}

// SignInit implements Module
func (m *MemModule) SignInit(sh pkcs11.SessionHandle, mech []*pkcs11.Mechanism, o pkcs11.ObjectHandle) error {
	if err := m.check("SignInit"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sh]
	if !ok {
		return pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	if s.signActive {
		return pkcs11.Error(pkcs11.CKR_OPERATION_ACTIVE)
	}
	obj, ok := m.tokens[s.slot].objects[o]
	if !ok || obj.priv == nil {
		return pkcs11.Error(pkcs11.CKR_KEY_HANDLE_INVALID)
	}
	if len(mech) == 0 || mech[0].Mechanism != pkcs11.CKM_RSA_PKCS {
		return pkcs11.Error(pkcs11.CKR_MECHANISM_INVALID)
	}
	s.signKey = obj
	s.signMech = mech[0].Mechanism
	s.signActive = true
	return nil
}

// Sign implements Module
func (m *MemModule) Sign(sh pkcs11.SessionHandle, message []byte) ([]byte, error) {
	if err := m.check("Sign"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sh]
	if !ok {
		return nil, pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	if !s.signActive {
		return nil, pkcs11.Error(pkcs11.CKR_OPERATION_NOT_INITIALIZED)
	}
	s.signActive = false

	// CKM_RSA_PKCS signs the raw message with PKCS#1 v1.5 padding
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.signKey.priv, crypto.Hash(0), message)
	if err != nil {
		return nil, pkcs11.Error(pkcs11.CKR_DATA_LEN_RANGE)
	}
	return sig, nil
}

// VerifyInit implements Module
func (m *MemModule) VerifyInit(sh pkcs11.SessionHandle, mech []*pkcs11.Mechanism, key pkcs11.ObjectHandle) error {
	if err := m.check("VerifyInit"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sh]
	if !ok {
		return pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	if s.verifyActive {
		return pkcs11.Error(pkcs11.CKR_OPERATION_ACTIVE)
	}
	obj, ok := m.tokens[s.slot].objects[key]
	if !ok || obj.pub == nil {
		return pkcs11.Error(pkcs11.CKR_KEY_HANDLE_INVALID)
	}
	if len(mech) == 0 || mech[0].Mechanism != pkcs11.CKM_RSA_PKCS {
		return pkcs11.Error(pkcs11.CKR_MECHANISM_INVALID)
	}
	s.verifyKey = obj
	s.verifyMech = mech[0].Mechanism
	s.verifyActive = true
	return nil
}

// Verify implements Module
func (m *MemModule) Verify(sh pkcs11.SessionHandle, data []byte, signature []byte) error {
	if err := m.check("Verify"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sh]
	if !ok {
		return pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	if !s.verifyActive {
		return pkcs11.Error(pkcs11.CKR_OPERATION_NOT_INITIALIZED)
	}
	s.verifyActive = false

	if err := rsa.VerifyPKCS1v15(s.verifyKey.pub, crypto.Hash(0), data, signature); err != nil {
		return pkcs11.Error(pkcs11.CKR_SIGNATURE_INVALID)
	}
	return nil
}

func matchesTemplate(obj *MemObject, temp []*pkcs11.Attribute) bool {
	for _, req := range temp {
		value, ok := obj.Attrs[req.Type]
		if !ok || !bytes.Equal(value, req.Value) {
			return false
		}
	}
	return true
}
