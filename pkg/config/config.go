package config

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mitchellh/go-homedir"
	"github.com/mr-tron/base58"
	"github.com/shirou/gopsutil/v3/host"
)

type EDSigner interface {
	Public() ed25519.PublicKey
	Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) (signature []byte, err error)
}

type Config struct {
	path      string
	configDir string

	mu sync.Mutex

	signer   crypto.Signer
	signerId string
	pubKey   ed25519.PublicKey
	privKey  ed25519.PrivateKey

	// Actual Config
	DataDir    string `json:"data-dir"`
	CacheDir   string `json:"cache-dir"`
	RepoPath   string `json:"repo-path"`
	BaseBranch string `json:"base-branch"`
	BranchNS   string `json:"branch-namespace"`
}

const (
	DefaultConfigPath = "~/.config/mail2pr/config.json"
	DefaultDataDir    = "~/.local/share/mail2pr"
	DefaultBaseBranch = "master"
	DefaultBranchNS   = "ml2pr"
)

func LoadConfig() (*Config, error) {
	if loc := os.Getenv("MAIL2PR_CONFIG"); loc != "" {
		return loadFile(loc)
	}

	path, err := homedir.Expand(DefaultConfigPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		return loadFile(path)
	}

	dir := filepath.Dir(path)

	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}

	dataDir, err := homedir.Expand(DefaultDataDir)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		path:      path,
		configDir: dir,

		DataDir:    dataDir,
		CacheDir:   defaultCacheHome(),
		BaseBranch: DefaultBaseBranch,
		BranchNS:   DefaultBranchNS,
	}

	return updateFromEnv(cfg)
}

func loadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	var cfg Config

	err = json.NewDecoder(f).Decode(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.path = path
	cfg.configDir = filepath.Dir(path)

	if cfg.DataDir == "" {
		dataDir, err := homedir.Expand(DefaultDataDir)
		if err != nil {
			return nil, err
		}

		cfg.DataDir = dataDir
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = defaultCacheHome()
	}

	if cfg.BaseBranch == "" {
		cfg.BaseBranch = DefaultBaseBranch
	}

	if cfg.BranchNS == "" {
		cfg.BranchNS = DefaultBranchNS
	}

	return updateFromEnv(&cfg)
}

func updateFromEnv(cfg *Config) (*Config, error) {
	if path := os.Getenv("MAIL2PR_DATA_DIR"); path != "" {
		cfg.DataDir = path
	}

	if path := os.Getenv("MAIL2PR_CACHE"); path != "" {
		cfg.CacheDir = path
	}

	if path := os.Getenv("MAIL2PR_REPO"); path != "" {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		if !fi.IsDir() {
			return nil, fmt.Errorf("path is not a directory: %s", path)
		}

		cfg.RepoPath = path
	}

	if branch := os.Getenv("MAIL2PR_BASE_BRANCH"); branch != "" {
		cfg.BaseBranch = branch
	}

	return ensureDirs(cfg)
}

func ensureDirs(cfg *Config) (*Config, error) {
	dirs := []string{
		cfg.DataDir,
		cfg.SnapshotsPath(),
		cfg.ArtifactsPath(),
		cfg.WorktreesPath(),
	}

	for _, dir := range dirs {
		fi, err := os.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				err = os.MkdirAll(dir, 0755)
				if err != nil {
					return nil, err
				}
			}
		} else if !fi.IsDir() {
			return nil, fmt.Errorf("path is not a directory: %s", dir)
		}
	}

	return cfg, nil
}

func (c *Config) ConfigDir() string {
	return c.configDir
}

func (c *Config) SnapshotsPath() string {
	return filepath.Join(c.DataDir, "snapshots")
}

func (c *Config) ArtifactsPath() string {
	return filepath.Join(c.DataDir, "artifacts")
}

func (c *Config) WorktreesPath() string {
	return filepath.Join(c.CacheDir, "mail2pr")
}

func (c *Config) BuildPath() string {
	return filepath.Join(c.DataDir, "build")
}

func (c *Config) Store() *Store {
	return &Store{
		Paths:   []string{c.SnapshotsPath()},
		Default: c.SnapshotsPath(),
	}
}

func (c *Config) ensureSignerSet() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.signer != nil {
		return nil
	}

	var (
		signer   crypto.Signer
		priv     ed25519.PrivateKey
		pub      ed25519.PublicKey
		signerId string
	)

	path := filepath.Join(c.configDir, "key")

	if data, err := os.ReadFile(path); err == nil {
		data, err = base58.Decode(string(data))
		if err != nil {
			return err
		}

		priv = ed25519.PrivateKey(data)
		pub = priv.Public().(ed25519.PublicKey)
		signerId = "1:" + base58.Encode(pub)
		signer = priv
	} else {
		epub, epriv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return err
		}

		pub = epub
		priv = epriv

		err = os.WriteFile(path, []byte(base58.Encode(epriv)), 0600)
		if err != nil {
			return err
		}

		signerId = "1:" + base58.Encode(pub)
		signer = epriv
	}

	c.signer = signer
	c.signerId = signerId
	c.pubKey = pub
	c.privKey = priv

	return nil
}

func (c *Config) SignerId() (string, error) {
	if err := c.ensureSignerSet(); err != nil {
		return "", err
	}

	return c.signerId, nil
}

func (c *Config) Public() ed25519.PublicKey {
	if err := c.ensureSignerSet(); err != nil {
		return nil
	}

	return c.pubKey
}

func (c *Config) Private() ed25519.PrivateKey {
	if err := c.ensureSignerSet(); err != nil {
		return nil
	}

	return c.privKey
}

func (c *Config) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) (signature []byte, err error) {
	if err := c.ensureSignerSet(); err != nil {
		return nil, err
	}

	return c.signer.Sign(rand, digest, opts)
}

func (c *Config) Constraints() map[string]string {
	constraints := SystemConstraints()
	constraints["mail2pr/root"] = c.DataDir

	return constraints
}

func Platform() (string, string, string) {
	osName, _, osVersion, err := host.PlatformInformation()
	if err != nil {
		panic(err)
	}

	arch, err := host.KernelArch()
	if err != nil {
		panic(err)
	}

	return osName, osVersion, arch
}

func SystemConstraints() map[string]string {
	osName, osVersion, arch := Platform()

	constraints := map[string]string{
		"machine/arch": arch,
		"os/name":      osName,
	}

	if osName == "darwin" {
		// Strip off the minor version
		dot := strings.LastIndexByte(osVersion, '.')
		if dot != -1 {
			osVersion = osVersion[:dot]
		}

		constraints["darwin/version"] = osVersion
	}

	return constraints
}
