package cache

import (
	"strconv"
	"strings"
)

// Keyspace builds persisted keys for one grade. Every key lives under
// "{prefix}:{grade}:" so records from different assessment cycles never share a key.
type Keyspace struct {
	prefix string
	grade  string
}

// NewKeyspace returns the keyspace of the given grade.
func NewKeyspace(prefix, grade string) Keyspace {
	return Keyspace{prefix: sanitise(prefix), grade: sanitise(grade)}
}

// Grade returns the grade label the keyspace is scoped to.
func (k Keyspace) Grade() string { return k.grade }

func (k Keyspace) Student(studentID string) string { return k.key("student", studentID) }

func (k Keyspace) Class(classID string) string { return k.key("class", classID) }

func (k Keyspace) School(schoolID string) string { return k.key("school", schoolID) }

func (k Keyspace) Group(group int) string { return k.key("group", strconv.Itoa(group)) }

func (k Keyspace) District(name string) string { return k.key("district", name) }

// Conflicts keys the conflict log of the latest merge run for a student.
func (k Keyspace) Conflicts(studentID string) string { return k.key("conflicts", studentID) }

// Checkpoint keys the progress marker of a bulk rebuild run.
func (k Keyspace) Checkpoint(runID string) string { return k.key("rebuild", runID) }

// Pattern matches every key of this grade and nothing else. Glob
// metacharacters in the prefix or grade label match literally.
func (k Keyspace) Pattern() string {
	return globEscaper.Replace(k.prefix) + ":" + globEscaper.Replace(k.grade) + ":*"
}

// globEscaper escapes the metacharacters shared by Redis SCAN MATCH and path.Match.
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// JobKey keys rebuild job status. Jobs are not grade scoped.
func JobKey(prefix, jobID string) string {
	return sanitise(prefix) + ":job:" + sanitise(jobID)
}

// StudentGradesKey keys the set of grades a student currently has records in.
// The grade slot is left empty so no grade pattern matches it.
func StudentGradesKey(prefix, studentID string) string {
	return sanitise(prefix) + "::grades:" + sanitise(studentID)
}

func (k Keyspace) key(kind, id string) string {
	var b strings.Builder
	b.Grow(len(k.prefix) + len(k.grade) + len(kind) + len(id) + 3)
	b.WriteString(k.prefix)
	b.WriteByte(':')
	b.WriteString(k.grade)
	b.WriteByte(':')
	b.WriteString(kind)
	b.WriteByte(':')
	b.WriteString(sanitise(id))
	return b.String()
}

func sanitise(part string) string {
	return strings.ReplaceAll(strings.TrimSpace(part), ":", "|")
}
