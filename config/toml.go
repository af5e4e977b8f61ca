package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"text/template"

	"github.com/BurntSushi/toml"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate").Funcs(template.FuncMap{
		"StringsJoin": strings.Join,
	})
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

// EnsureRoot creates the root, config, and data directories if they don't
// exist.
func EnsureRoot(rootDir string) error {
	for _, dir := range []string{
		rootDir,
		filepath.Join(rootDir, defaultConfigDir),
		filepath.Join(rootDir, defaultDataDir),
	} {
		if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
			return fmt.Errorf("could not create directory %v: %w", dir, err)
		}
	}
	return nil
}

// ConfigFile returns the path of the config file under rootDir.
func ConfigFile(rootDir string) string {
	return filepath.Join(rootDir, defaultConfigFilePath)
}

// WriteConfigFile renders config using the template and writes it to
// the config file under rootDir.
func WriteConfigFile(rootDir string, config *Config) error {
	return config.WriteToTemplate(ConfigFile(rootDir))
}

// WriteToTemplate writes the config to the exact file specified by
// the path, in the default toml template and does not mangle the path
// or filename at all.
func (cfg *Config) WriteToTemplate(path string) error {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, cfg); err != nil {
		return err
	}

	return os.WriteFile(path, buffer.Bytes(), 0644)
}

// UnknownKeys returns the keys set in the TOML file at path that no
// configuration field reads, as dotted paths in sorted order.
func UnknownKeys(path string) ([]string, error) {
	var raw map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	keys, sections := make(map[string]bool), make(map[string]bool)
	indexTaggedStructFields(reflect.TypeOf(Config{}), "", keys, sections)

	var unknown []string
	var walk func(m map[string]interface{}, prefix string)
	walk = func(m map[string]interface{}, prefix string) {
		for k, v := range m {
			key := prefix + k
			if sub, ok := v.(map[string]interface{}); ok && sections[key] {
				walk(sub, key+".")
				continue
			}
			if !keys[key] {
				unknown = append(unknown, key)
			}
		}
	}
	walk(raw, "")

	sort.Strings(unknown)
	return unknown, nil
}

// indexTaggedStructFields records the mapstructure keys of typ under prefix,
// flattening fields tagged ",squash" and descending into sections.
func indexTaggedStructFields(typ reflect.Type, prefix string, keys, sections map[string]bool) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := strings.Split(field.Tag.Get("mapstructure"), ",")
		name := tag[0]
		squash := len(tag) > 1 && tag[1] == "squash"

		ft := field.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		switch {
		case squash:
			indexTaggedStructFields(ft, prefix, keys, sections)
		case name == "":
		case ft.Kind() == reflect.Struct && ft.PkgPath() == typ.PkgPath():
			sections[prefix+name] = true
			indexTaggedStructFields(ft, prefix+name+".", keys, sections)
		default:
			keys[prefix+name] = true
		}
	}
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/tonlight/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.tonlight" by default, but could be changed via $TL_HOME env variable
# or --home cmd flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# Database backend: goleveldb | memdb
db_backend = "{{ .BaseConfig.DBBackend }}"

# Database directory
db_dir = "{{ js .BaseConfig.DBPath }}"

# Output level for logging: trace | debug | info | warn | error
log_level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log_format = "{{ .BaseConfig.LogFormat }}"

#######################################################################
###                 Light Client Configuration Options              ###
#######################################################################
[light]

# Global id of the tracked network: -239 (mainnet) or -3 (testnet)
global_id = {{ .Light.GlobalID }}

# Path to the JSON file holding the state the client starts from when
# its database is empty
trusted_state_file = "{{ js .Light.TrustedStateFile }}"

# How signatures add up towards the quorum: validator | total
# * validator: each distinct signer adds its own weight
# * total: each valid signature adds the set's total weight, as the
#   deployed light client contract does
tally_mode = "{{ .Light.TallyMode }}"

# Reject key blocks whose validator set declares a total weight below
# the sum of its members' weights
verify_total_weight = {{ .Light.VerifyTotalWeight }}

# Number of trusted states kept in the database. 0 keeps all of them.
pruning_size = {{ .Light.PruningSize }}

# Number of signature requests kept in flight while syncing
fetch_concurrency = {{ .Light.FetchConcurrency }}

#######################################################################
###                   Provider Configuration Options                ###
#######################################################################
[provider]

# Base URL of the toncenter v2 API serving block signatures
signatures_url = "{{ .Provider.SignaturesURL }}"

# toncenter API key. Optional.
api_key = "{{ .Provider.APIKey }}"

# Directory of serialized blocks, named <network>-<seqno>.block or
# <network>-<seqno>-key.block
blocks_dir = "{{ js .Provider.BlocksDir }}"

# Network name used in block file names: mainnet | testnet
network = "{{ .Provider.Network }}"

# Timeout of a single request
timeout = "{{ .Provider.Timeout }}"

#######################################################################
###       Instrumentation Configuration Options                     ###
#######################################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# PrometheusListenAddr.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus_listen_addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"
`
