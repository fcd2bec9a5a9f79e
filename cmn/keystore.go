package cmn

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

const SOLT_SIZE = 32

var ErrWrongPassword = errors.New("wrong password or corrupted keystore")

// KeyRecord is the plaintext content of the keystore file.
type KeyRecord struct {
	Name    string `json:"name"`
	Entropy string `json:"entropy"` // hex encoded BIP-39 entropy
	Path    string `json:"path"`    // derivation path of the signing key
}

func KeystorePath() string {
	return filepath.Join(DataFolder, KEYSTORE_NAME)
}

func KeystoreExists(file string) bool {
	_, err := os.Stat(file)
	return err == nil
}

func SaveKeystore(file string, k *KeyRecord, pass string) error {
	jsonData, err := json.Marshal(k)
	if err != nil {
		log.Error().Msgf("Error marshaling JSON: %v\n", err)
		return err
	}

	solt := make([]byte, SOLT_SIZE)
	_, err = rand.Read(solt)
	if err != nil {
		log.Error().Msgf("Error generating salt: %v\n", err)
		return err
	}

	encrypted, err := encrypt(jsonData, generateKey(pass, solt))
	if err != nil {
		log.Error().Msgf("Error encrypting data: %v\n", err)
		return err
	}

	err = os.WriteFile(file, append(solt, encrypted...), 0600)
	if err != nil {
		log.Error().Msgf("Error writing file: %v\n", err)
		return err
	}

	return nil
}

func OpenKeystore(file string, pass string) (*KeyRecord, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		log.Error().Msgf("Error reading file: %v\n", err)
		return nil, err
	}

	if len(data) <= SOLT_SIZE {
		return nil, ErrWrongPassword
	}

	solt := data[:SOLT_SIZE]
	data = data[SOLT_SIZE:]

	decrypted, err := decrypt(data, generateKey(pass, solt))
	if err != nil {
		log.Debug().Msgf("Error decrypting keystore: %v", err)
		return nil, ErrWrongPassword
	}

	k := &KeyRecord{}
	err = json.Unmarshal(decrypted, k)
	if err != nil {
		log.Error().Msgf("Error unmarshaling JSON: %v\n", err)
		return nil, err
	}

	return k, nil
}

func encrypt(data []byte, passphrase []byte) ([]byte, error) {
	block, err := aes.NewCipher(passphrase)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

func decrypt(data []byte, passphrase []byte) ([]byte, error) {
	block, err := aes.NewCipher(passphrase)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// generateKey derives a key from a password using PBKDF2
func generateKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, 4096, 32, sha256.New)
}
