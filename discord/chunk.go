package discord

import "strings"

// DefaultChunkLimit leaves headroom under Discord's 2000-char message cap
// for fence repair and trailing markup.
const DefaultChunkLimit = 1900

const fence = "```"

// ChunkMessage splits text into Discord-sized chunks. Messages at or under
// the limit come back unchanged as a single chunk. When a split lands
// inside a code fence, the open fence is closed at the chunk boundary and
// reopened at the start of the next chunk so every chunk renders balanced.
func ChunkMessage(text string) []string {
	return chunkMessage(text, DefaultChunkLimit)
}

func chunkMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var buf strings.Builder
	inFence := false

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		out := buf.String()
		if inFence {
			out = strings.TrimRight(out, "\n") + "\n" + fence
		}
		chunks = append(chunks, out)
		buf.Reset()
		if inFence {
			buf.WriteString(fence + "\n")
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		// Hard-split pathological single lines
		for len(line) > limit {
			head := line[:limit]
			line = line[limit:]
			if buf.Len() > 0 {
				flush()
			}
			buf.WriteString(head)
			flush()
		}

		if buf.Len()+len(line) > limit {
			flush()
		}
		buf.WriteString(line)

		if strings.Count(line, fence)%2 == 1 {
			inFence = !inFence
		}
	}

	if buf.Len() > 0 {
		out := buf.String()
		if inFence {
			// Unbalanced opening fence in the source; close it so the
			// last chunk still renders
			out = strings.TrimRight(out, "\n") + "\n" + fence
		}
		chunks = append(chunks, out)
	}

	return chunks
}

// Truncate right-truncates s to max runes with a visible suffix
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	const suffix = "…"
	if max <= len([]rune(suffix)) {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + suffix
}
