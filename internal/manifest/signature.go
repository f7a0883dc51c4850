package manifest

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/ssh"

	appErrors "launcher/internal/errors"
)

// SignatureNamespace is the ssh-keygen -Y namespace manifests are signed under.
const SignatureNamespace = "launcher-manifest"

const (
	armorBegin = "-----BEGIN SSH SIGNATURE-----"
	armorEnd   = "-----END SSH SIGNATURE-----"
	sigMagic   = "SSHSIG"
)

// Verifier checks detached SSH signatures (ssh-keygen -Y sign) against a set
// of trusted public keys.
type Verifier struct {
	keys []ssh.PublicKey
}

// NewVerifier parses one or more authorized_keys lines.
func NewVerifier(authorizedKeys string) (*Verifier, error) {
	v := &Verifier{}
	rest := []byte(authorizedKeys)
	for len(bytes.TrimSpace(rest)) > 0 {
		key, _, _, next, err := ssh.ParseAuthorizedKey(rest)
		if err != nil {
			return nil, appErrors.New(appErrors.CodeConfigurationError, fmt.Sprintf("parse manifest public key: %v", err), err)
		}
		v.keys = append(v.keys, key)
		rest = next
	}
	if len(v.keys) == 0 {
		return nil, appErrors.New(appErrors.CodeConfigurationError, "no manifest public key configured", nil)
	}
	return v, nil
}

// Verify returns nil when armored is a valid signature of data by any trusted key.
func (v *Verifier) Verify(data, armored []byte) error {
	sig, err := parseArmoredSignature(armored)
	if err != nil {
		return appErrors.New(appErrors.CodeSignatureInvalid, fmt.Sprintf("manifest signature unreadable: %v", err), err)
	}
	if sig.namespace != SignatureNamespace {
		return appErrors.New(appErrors.CodeSignatureInvalid,
			fmt.Sprintf("manifest signature namespace %q, want %q", sig.namespace, SignatureNamespace), nil)
	}
	var lastErr error
	for _, key := range v.keys {
		if key.Type() != sig.signature.Format && !isRSAFormat(key.Type(), sig.signature.Format) {
			continue
		}
		if err := verifySignedData(key, data, sig); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no trusted key of type %s", sig.signature.Format)
	}
	return appErrors.New(appErrors.CodeSignatureInvalid, fmt.Sprintf("manifest signature rejected: %v", lastErr), lastErr)
}

// RSA keys sign with rsa-sha2-256/512 while the key type stays ssh-rsa.
func isRSAFormat(keyType, format string) bool {
	return keyType == ssh.KeyAlgoRSA && (format == ssh.KeyAlgoRSASHA256 || format == ssh.KeyAlgoRSASHA512)
}

type sshSignature struct {
	namespace     string
	hashAlgorithm string
	signature     *ssh.Signature
}

func parseArmoredSignature(data []byte) (*sshSignature, error) {
	begin := bytes.Index(data, []byte(armorBegin))
	end := bytes.Index(data, []byte(armorEnd))
	if begin == -1 || end == -1 || end < begin {
		return nil, fmt.Errorf("missing armor markers")
	}
	body := data[begin+len(armorBegin) : end]
	body = bytes.Join(bytes.Fields(body), nil)
	blob, err := base64.StdEncoding.DecodeString(string(body))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return parseSignatureBlob(blob)
}

func parseSignatureBlob(blob []byte) (*sshSignature, error) {
	r := bytes.NewReader(blob)

	magic := make([]byte, len(sigMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != sigMagic {
		return nil, fmt.Errorf("bad magic %q", magic)
	}
	var sigVersion uint32
	if err := binary.Read(r, binary.BigEndian, &sigVersion); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if sigVersion != 1 {
		return nil, fmt.Errorf("unsupported signature version %d", sigVersion)
	}

	fields := make([][]byte, 5) // public key, namespace, reserved, hash algorithm, signature
	for i := range fields {
		f, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("read field %d: %w", i, err)
		}
		fields[i] = f
	}

	sr := bytes.NewReader(fields[4])
	format, err := readString(sr)
	if err != nil {
		return nil, fmt.Errorf("read signature format: %w", err)
	}
	sigData, err := readString(sr)
	if err != nil {
		return nil, fmt.Errorf("read signature data: %w", err)
	}

	return &sshSignature{
		namespace:     string(fields[1]),
		hashAlgorithm: string(fields[3]),
		signature:     &ssh.Signature{Format: string(format), Blob: sigData},
	}, nil
}

func readString(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	if n > 1<<20 {
		return nil, fmt.Errorf("field length %d too large", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func writeString(w *bytes.Buffer, data []byte) {
	_ = binary.Write(w, binary.BigEndian, uint32(len(data)))
	w.Write(data)
}

// signedMessage builds the blob the signer actually signed.
func signedMessage(namespace, hashAlgorithm string, data []byte) ([]byte, error) {
	var digest []byte
	switch strings.ToLower(hashAlgorithm) {
	case "sha256":
		h := sha256.Sum256(data)
		digest = h[:]
	case "sha512":
		h := sha512.Sum512(data)
		digest = h[:]
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %s", hashAlgorithm)
	}
	var buf bytes.Buffer
	buf.WriteString(sigMagic)
	writeString(&buf, []byte(namespace))
	writeString(&buf, nil)
	writeString(&buf, []byte(hashAlgorithm))
	writeString(&buf, digest)
	return buf.Bytes(), nil
}

func verifySignedData(key ssh.PublicKey, data []byte, sig *sshSignature) error {
	msg, err := signedMessage(sig.namespace, sig.hashAlgorithm, data)
	if err != nil {
		return err
	}
	return key.Verify(msg, sig.signature)
}
