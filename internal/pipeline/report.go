package pipeline

// Stage names the pipeline step where a chunk or file failed
type Stage string

const (
	StageRead   Stage = "read"
	StageStore  Stage = "store"
	StageEmbed  Stage = "embed"
	StageVector Stage = "vector"
	StageLink   Stage = "link"
)

// ChunkFailure records one abandoned unit of work. A failure with an
// empty UnitName and StageRead covers a whole skipped file.
type ChunkFailure struct {
	FilePath string
	UnitName string
	Stage    Stage
	Err      error
}

// Report aggregates one processing run. ProcessedChunks counts chunks
// that completed every enrichment step; the fallback-summary path
// counts as processed. TotalChunks counts everything the chunker
// emitted, so ProcessedChunks < TotalChunks means some chunks remain
// partially enriched.
type Report struct {
	TotalChunks     int
	ProcessedChunks int
	Failures        []ChunkFailure
}

// recordFailure appends a failure to the report
func (r *Report) recordFailure(filePath, unitName string, stage Stage, err error) {
	r.Failures = append(r.Failures, ChunkFailure{
		FilePath: filePath,
		UnitName: unitName,
		Stage:    stage,
		Err:      err,
	})
}
