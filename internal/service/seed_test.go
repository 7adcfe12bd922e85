package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivspro/tariff-import/internal/models"
)

func TestParseSeedJSONArray(t *testing.T) {
	data := []byte(`[
		{"nom": "grossiste-a", "host": "ftp.example.com", "protocole": "ftp", "login": "bob", "mdp": "s3cret", "port": 2121},
		{"name": "mailbox-b", "host": "imap.example.com", "type": "imap"}
	]`)
	entries, err := ParseSeed(data, ".json")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "grossiste-a", entries[0]["name"])
	assert.Equal(t, "ftp", entries[0]["protocol"])
	assert.Equal(t, "bob", entries[0]["username"])
	assert.Equal(t, "s3cret", entries[0]["password"])
	assert.Equal(t, "2121", entries[0]["port"])
	assert.Equal(t, "imap", entries[1]["protocol"])
}

func TestParseSeedJSONSingleObject(t *testing.T) {
	entries, err := ParseSeed([]byte(`{"host": "h", "nom": "n"}`), ".json")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "h", entries[0]["host"])
}

func TestParseSeedCSVWithSynonymHeaders(t *testing.T) {
	data := []byte("Hôte;Identifiant;Mot de passe;Nom;Protocole\nsrv1;u1;p1;prov1;sftp\nsrv2;u2;;prov2;ftp\n")
	entries, err := ParseSeed(data, ".csv")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "srv1", entries[0]["host"])
	assert.Equal(t, "u1", entries[0]["username"])
	assert.Equal(t, "p1", entries[0]["password"])
	assert.Equal(t, "prov1", entries[0]["name"])
	assert.Equal(t, "", entries[1]["password"])
}

func TestParseSeedCSVHeaderlessFallback(t *testing.T) {
	data := []byte("srv1;u1;p1;prov1\nsrv2;u2;p2;prov2\n")
	entries, err := ParseSeed(data, ".csv")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "srv2", entries[1]["host"])
	assert.Equal(t, "prov2", entries[1]["name"])
}

func TestParseSeedQABlocks(t *testing.T) {
	data := []byte(`Nom? grossiste-a
Hôte? sftp.example.com
Login? alice
Mdp? secret
Protocole? sftp

Nom: mailbox-b
Serveur: imap.example.com
Type: imap
SSL: oui`)
	entries, err := ParseSeed(data, ".txt")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "grossiste-a", entries[0]["name"])
	assert.Equal(t, "sftp.example.com", entries[0]["host"])
	assert.Equal(t, "alice", entries[0]["username"])
	assert.Equal(t, "imap.example.com", entries[1]["host"])
	assert.Equal(t, "oui", entries[1]["imap_use_ssl"])
}

func TestParseSeedSemicolonLineFallback(t *testing.T) {
	entries, err := ParseSeed([]byte("ftp.example.com;bob;pw;grossiste\n"), "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ftp.example.com", entries[0]["host"])
	assert.Equal(t, "grossiste", entries[0]["name"])
}

func TestParseSeedUnknownFormat(t *testing.T) {
	_, err := ParseSeed([]byte("no structure here"), "")
	assert.Error(t, err)
}

func TestBuildProviderDefaults(t *testing.T) {
	s := NewSeedService(nil, "main")

	p, ok := s.buildProvider(map[string]string{
		"host": "imap.example.com", "protocol": "mail",
	})
	require.True(t, ok)
	// name falls back to host, imap gets mailbox defaults
	assert.Equal(t, "imap.example.com", p.Name)
	assert.Equal(t, models.ProtocolIMAP, p.Protocol)
	assert.True(t, p.IMAPUseSSL)
	assert.Equal(t, "INBOX", p.DirIn)
	assert.Equal(t, "Processed", p.DirProcessed)
	assert.Equal(t, "main", p.Company)
	assert.Equal(t, "*", p.IncludePattern)
}

func TestBuildProviderSkipsIncomplete(t *testing.T) {
	s := NewSeedService(nil, "main")
	_, ok := s.buildProvider(map[string]string{"name": "no-host"})
	assert.False(t, ok)
}

func TestParseSeedBoolFrenchTokens(t *testing.T) {
	v, ok := parseSeedBool("Oui")
	assert.True(t, ok)
	assert.True(t, v)
	v, ok = parseSeedBool("non")
	assert.True(t, ok)
	assert.False(t, v)
	_, ok = parseSeedBool("maybe")
	assert.False(t, ok)
}
