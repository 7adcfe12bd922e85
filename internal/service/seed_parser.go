package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ivspro/tariff-import/internal/utils"
)

// canonical entry keys produced by normalization
var seedSynonyms = map[string][]string{
	"name":     {"name", "nom", "provider", "fournisseur_nom"},
	"company":  {"company", "company_name", "societe", "societe_nom", "entreprise", "my_company"},
	"protocol": {"protocol", "protocole", "type"},
	"host":     {"host", "hote", "hostname", "server", "serveur"},
	"port":     {"port"},
	"username": {"username", "login", "user", "utilisateur", "identifiant"},
	"password": {"password", "pass", "mdp", "mot_de_passe"},
	"dir_in": {
		"dir_in", "remote_dir_in", "remote_in", "incoming", "dossier_entree", "repertoire_entree",
		"mailbox", "folder", "mailbox_in", "boite", "boite_reception", "inbox",
	},
	"dir_processed": {
		"dir_processed", "remote_dir_processed", "processed", "repertoire_traite", "dossier_traite",
		"mailbox_processed", "boite_traitee", "archive", "archives", "traite",
	},
	"dir_error": {
		"dir_error", "remote_dir_error", "error", "errors", "repertoire_erreur", "dossier_erreur",
		"mailbox_error", "boite_erreur", "erreur", "rejet", "rejets", "rejected", "failed", "echec",
	},
	"include_pattern":      {"include_pattern", "file_pattern", "pattern", "glob", "mask"},
	"timeout":              {"timeout"},
	"retries":              {"retries", "retry", "essais"},
	"keepalive":            {"keepalive"},
	"imap_use_ssl":         {"imap_use_ssl", "imap_ssl", "use_ssl", "ssl", "tls", "starttls"},
	"imap_search_criteria": {"imap_search_criteria", "search", "search_criteria", "imap_search"},
	"imap_mark_seen":       {"imap_mark_seen", "mark_seen", "seen"},
	"imap_move_processed":  {"imap_move_processed", "move_processed", "move_success", "move_ok"},
	"imap_move_error":      {"imap_move_error", "move_error", "move_fail", "move_ko"},
}

var seedKeyIndex = func() map[string]string {
	idx := make(map[string]string)
	for canon, keys := range seedSynonyms {
		for _, k := range keys {
			idx[k] = canon
		}
	}
	return idx
}()

var (
	accentReplacer = strings.NewReplacer(
		"é", "e", "è", "e", "ê", "e", "ë", "e",
		"à", "a", "â", "a", "ä", "a",
		"ô", "o", "ö", "o",
		"û", "u", "ü", "u",
		"ç", "c",
	)
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// normSeedKey flattens a raw header or question label to a lookup key:
// lowercase, accents stripped, word breaks collapsed to underscores.
func normSeedKey(k string) string {
	k = accentReplacer.Replace(strings.ToLower(strings.TrimSpace(k)))
	k = nonAlnumRe.ReplaceAllString(k, "_")
	return strings.Trim(k, "_")
}

// normalizeEntry maps the raw keys of one parsed entry onto canonical
// names. Unknown keys pass through under their normalized form.
func normalizeEntry(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		nk := normSeedKey(k)
		if canon, ok := seedKeyIndex[nk]; ok {
			nk = canon
		}
		if nk != "" {
			out[nk] = strings.TrimSpace(v)
		}
	}
	return out
}

// ParseSeed detects the seed file shape and returns normalized entries.
// The extension drives JSON/CSV detection; everything else is treated
// as text: "Key? Value" blocks first, then the single-line
// host;login;password;name fallback.
func ParseSeed(data []byte, ext string) ([]map[string]string, error) {
	switch ext {
	case ".json":
		return parseSeedJSON(data)
	case ".csv":
		return parseSeedCSV(data, 0)
	case ".tsv":
		return parseSeedCSV(data, '\t')
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return parseSeedJSON(data)
	}
	text := string(data)
	if entries := parseSeedBlocks(text); len(entries) > 0 {
		return entries, nil
	}
	if entries := parseSeedLine(text); len(entries) > 0 {
		return entries, nil
	}
	return nil, utils.ErrSeedFormatUnknown
}

func parseSeedJSON(data []byte) ([]map[string]string, error) {
	var asList []map[string]interface{}
	if err := json.Unmarshal(data, &asList); err == nil {
		return stringifyAll(asList), nil
	}
	var asObject map[string]interface{}
	if err := json.Unmarshal(data, &asObject); err != nil {
		return nil, fmt.Errorf("%w: invalid json", utils.ErrSeedFormatUnknown)
	}
	return stringifyAll([]map[string]interface{}{asObject}), nil
}

func stringifyAll(in []map[string]interface{}) []map[string]string {
	out := make([]map[string]string, 0, len(in))
	for _, m := range in {
		raw := make(map[string]string, len(m))
		for k, v := range m {
			switch t := v.(type) {
			case nil:
				raw[k] = ""
			case string:
				raw[k] = t
			case bool:
				raw[k] = strconv.FormatBool(t)
			case float64:
				raw[k] = strconv.FormatFloat(t, 'f', -1, 64)
			default:
				raw[k] = fmt.Sprint(t)
			}
		}
		out = append(out, normalizeEntry(raw))
	}
	return out
}

func parseSeedCSV(data []byte, delim rune) ([]map[string]string, error) {
	if delim == 0 {
		sample := string(data[:min(len(data), 2048)])
		delim = ','
		if strings.Count(sample, ";") >= strings.Count(sample, ",") {
			delim = ';'
		}
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrSeedFormatUnknown, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	if len(header) >= 2 && looksLikeHeader(header) {
		var out []map[string]string
		for _, rec := range records[1:] {
			raw := make(map[string]string, len(header))
			for i, h := range header {
				if i < len(rec) {
					raw[h] = rec[i]
				}
			}
			out = append(out, normalizeEntry(raw))
		}
		return out, nil
	}

	// headerless fallback: host;login;password;name
	var out []map[string]string
	for _, rec := range records {
		if len(rec) >= 4 {
			out = append(out, normalizeEntry(map[string]string{
				"host": rec[0], "login": rec[1], "mdp": rec[2], "nom": rec[3],
			}))
		}
	}
	return out, nil
}

// looksLikeHeader accepts the first record as a header when at least
// one cell maps to a known synonym.
func looksLikeHeader(cells []string) bool {
	for _, c := range cells {
		if _, ok := seedKeyIndex[normSeedKey(c)]; ok {
			return true
		}
	}
	return false
}

var blockSplitRe = regexp.MustCompile(`\n\s*\n`)

// parseSeedBlocks reads blank-line separated blocks of
// "Key? Value" (or ':' or '=') lines, one provider per block.
func parseSeedBlocks(text string) []map[string]string {
	var out []map[string]string
	for _, block := range blockSplitRe.Split(strings.TrimSpace(text), -1) {
		entry := make(map[string]string)
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var k, v string
			switch {
			case strings.Contains(line, "?"):
				k, v, _ = strings.Cut(line, "?")
			case strings.Contains(line, ":"):
				k, v, _ = strings.Cut(line, ":")
			case strings.Contains(line, "="):
				k, v, _ = strings.Cut(line, "=")
			default:
				// a stray host;login;password;name line inside a block
				if parts := strings.Split(line, ";"); len(parts) >= 4 {
					entry["host"] = strings.TrimSpace(parts[0])
					entry["login"] = strings.TrimSpace(parts[1])
					entry["mdp"] = strings.TrimSpace(parts[2])
					entry["nom"] = strings.TrimSpace(parts[3])
				}
				continue
			}
			if key := strings.TrimSpace(k); key != "" {
				entry[key] = strings.TrimSpace(v)
			}
		}
		if len(entry) > 0 {
			out = append(out, normalizeEntry(entry))
		}
	}
	return out
}

// parseSeedLine is the last-resort shape: the first line with four
// ;-separated fields is taken as host;login;password;name.
func parseSeedLine(text string) []map[string]string {
	for _, line := range strings.Split(text, "\n") {
		parts := strings.Split(strings.TrimSpace(line), ";")
		if len(parts) >= 4 && parts[0] != "" && parts[1] != "" {
			return []map[string]string{normalizeEntry(map[string]string{
				"host": parts[0], "login": parts[1], "mdp": parts[2], "nom": parts[3],
			})}
		}
	}
	return nil
}

func parseSeedInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

var seedTruthy = map[string]bool{
	"1": true, "true": true, "t": true, "y": true, "yes": true, "on": true,
	"vrai": true, "oui": true, "o": true, "ok": true,
}

var seedFalsy = map[string]bool{
	"0": true, "false": true, "f": true, "n": true, "no": true, "off": true,
	"faux": true, "non": true,
}

func parseSeedBool(raw string) (bool, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return false, false
	}
	if seedTruthy[s] {
		return true, true
	}
	if seedFalsy[s] {
		return false, true
	}
	return false, false
}
