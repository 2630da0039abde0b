package mcpserver

// FormatsContract describes how ark storages encode values, for LLM
// consumers that write through the storage tools.
const FormatsContract = `# Ark Storage Formats

Values are stored per resource. A resource id has the form ` + "`<size>-<32 hex digits>`" + `:
the content length in bytes followed by the first 16 bytes of its BLAKE3 digest.

## Storages

- Named storages live under ` + "`<root>/.ark/`" + `:
  - ` + "`tags`, `scores`" + `: one versioned file holding every resource.
  - ` + "`stats`, `properties`, `metadata`, `previews`, `thumbnails`" + `: one versioned file per resource.
- Every write produces a new generation with a version number one greater than the previous.
- Two concurrent writers never both succeed; the loser gets a conflict and must retry.

## Encodings

### raw (default)
- append: the new bytes are concatenated after the current value.
- insert: the value is replaced.

### json (structured)
- Input is comma-separated ` + "`key=value`" + ` pairs, e.g. ` + "`genre=jazz, year=1959`" + `.
- Keys and values are trimmed. Empty keys, duplicate keys and tokens without ` + "`=`" + ` are rejected.
- append: pairs are merged into the stored mapping; new values win on key clashes.
- insert: the mapping is replaced by the parsed pairs.
- A value that is not a structured mapping is treated as empty before merging.
`
