// gtest runs winzigc over a set of WinZig sources and compares what it
// reports against golden files, a reference compiler, or the last run.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout         string        `json:"stdout"`
	Stderr         string        `json:"stderr"`
	ExitCode       int           `json:"exitCode"`
	Duration       time.Duration `json:"duration"`
	TimedOut       bool          `json:"timed_out"`
	UnstableOutput bool          `json:"unstable_output,omitempty"`
}

// CompileResult is one compiler's verdict on one source file.
type CompileResult struct {
	Source      string    `json:"source"`
	Args        []string  `json:"args,omitempty"`
	Result      Execution `json:"result"`
	Diagnostics []string  `json:"diagnostics,omitempty"`
}

type FileTestResult struct {
	File      string         `json:"file"`
	Status    string         `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message   string         `json:"message,omitempty"`
	Diff      string         `json:"diff,omitempty"`
	Reference *CompileResult `json:"reference,omitempty"`
	Target    *CompileResult `json:"target,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	refCompiler    = flag.String("ref-compiler", "", "Path to a reference compiler (optional).")
	refArgs        = flag.String("ref-args", "", "Arguments for the reference compiler (space-separated).")
	targetCompiler = flag.String("compiler", "./winzigc", "Path to the compiler under test.")
	targetArgs     = flag.String("args", "--plain --color never", "Arguments for the compiler under test (space-separated).")
	generateGolden = flag.String("generate-golden", "", "Generate a golden .json file for a given source file.")
	testFiles      = flag.String("test-files", "examples/*.wz", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each compiler invocation.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	runs           = flag.Int("runs", 3, "Number of times to compile each file to find the minimum duration.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	ignoreLines    = flag.String("ignore-lines", "", "Comma-separated substrings to ignore during output comparison.")
)

const (
	cRed     = "\x1b[91m"
	cYellow  = "\x1b[93m"
	cGreen   = "\x1b[92m"
	cCyan    = "\x1b[96m"
	cMagenta = "\x1b[95m"
	cBold    = "\x1b[1m"
	cNone    = "\x1b[0m"
)

// sourcePlaceholder stands in for the path of the file under test so that
// golden files survive being generated in another directory.
const sourcePlaceholder = "__SOURCE__"

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *runs < 1 {
		*runs = 1
	}
	setupInterruptHandler()

	if *generateGolden != "" {
		handleGenerateGolden(*generateGolden)
		return
	}

	if handleRunTestSuite() {
		os.Exit(1)
	}
}

func setupInterruptHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled.\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func handleGenerateGolden(sourceFile string) {
	log.Printf("Generating golden file for %s...\n", sourceFile)

	result := compileFile(*targetCompiler, strings.Fields(*targetArgs), sourceFile)
	if result.Result.TimedOut {
		log.Fatalf("%s[ERROR]%s %s timed out on %s\n", cRed, cNone, *targetCompiler, sourceFile)
	}

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to marshal golden data to JSON: %v\n", cRed, cNone, err)
	}

	goldenFileName := getJSONPath(sourceFile)
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Fatalf("%s[ERROR]%s Failed to create directory %s: %v\n", cRed, cNone, *jsonDir, err)
		}
	}

	if err := os.WriteFile(goldenFileName, jsonData, 0644); err != nil {
		log.Fatalf("%s[ERROR]%s Failed to write golden file %s: %v\n", cRed, cNone, goldenFileName, err)
	}

	log.Printf("%s[SUCCESS]%s Golden file created at %s (exit %d, %d diagnostics)\n",
		cGreen, cNone, goldenFileName, result.Result.ExitCode, len(result.Diagnostics))
}

// handleRunTestSuite reports whether anything failed.
func handleRunTestSuite() bool {
	refCompilerFound := false
	if *refCompiler != "" {
		_, err := exec.LookPath(*refCompiler)
		refCompilerFound = err == nil
		if !refCompilerFound {
			log.Printf("%s[WARN]%s Reference compiler '%s' not found. Will rely on golden files.\n", cYellow, cNone, *refCompiler)
		}
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return false
	}

	previousResults := make(TestSuiteResults)
	outputFile := reportPath()
	if prevData, err := os.ReadFile(outputFile); err == nil {
		if json.Unmarshal(prevData, &previousResults) != nil {
			log.Printf("%s[WARN]%s Could not parse previous results file %s. Cache will not be used.\n", cYellow, cNone, outputFile)
			previousResults = make(TestSuiteResults)
		}
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		if abs, err := filepath.Abs(f); err == nil {
			skipList[abs] = true
		}
	}

	allResults := runSuite(files, skipList, *jobs, func(file string) *FileTestResult {
		return testFile(file, refCompilerFound, previousResults)
	})

	printSummary(allResults)
	return hasFailures(writeJSONReport(allResults))
}

// runSuite fans files out to a pool of workers. Files whose content hashes
// the same as an earlier file are skipped.
func runSuite(files []string, skipList map[string]bool, workers int, test func(string) *FileTestResult) []*FileTestResult {
	if workers < 1 {
		workers = 1
	}
	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- test(file)
			}
		}()
	}

	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})
	return allResults
}

func testFile(file string, refCompilerFound bool, previousResults TestSuiteResults) *FileTestResult {
	ignored := ignoredSubstrings()

	// 1st try: a golden file next to the source (or in --dir)
	goldenFile := getJSONPath(file)
	if _, err := os.Stat(goldenFile); err == nil {
		golden, err := loadGolden(goldenFile)
		if err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
		}
		target := compileFile(*targetCompiler, strings.Fields(*targetArgs), file)
		return compareResults(file, golden, target, ignored)
	}

	// 2nd try: run the reference compiler alongside
	if refCompilerFound {
		var ref, target *CompileResult
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			ref = compileFile(*refCompiler, strings.Fields(*refArgs), file)
		}()
		go func() {
			defer wg.Done()
			target = compileFile(*targetCompiler, strings.Fields(*targetArgs), file)
		}()
		wg.Wait()
		return compareResults(file, ref, target, ignored)
	}

	// 3rd try: whatever the previous run recorded
	if prev, ok := previousResults[file]; ok && prev.Target != nil {
		if *verbose {
			log.Printf("[%s] Using cached result from previous test run.", file)
		}
		target := compileFile(*targetCompiler, strings.Fields(*targetArgs), file)
		result := compareResults(file, prev.Target, target, ignored)
		result.Message += " (against previous run)"
		return result
	}

	return &FileTestResult{File: file, Status: "SKIP", Message: "No golden file, reference compiler or previous result to compare against"}
}

func loadGolden(goldenFile string) (*CompileResult, error) {
	goldenData, err := os.ReadFile(goldenFile)
	if err != nil {
		return nil, fmt.Errorf("Could not read golden file %s: %v", goldenFile, err)
	}
	var golden CompileResult
	if err := json.Unmarshal(goldenData, &golden); err != nil {
		return nil, fmt.Errorf("Could not parse golden file %s: %v", goldenFile, err)
	}
	return &golden, nil
}

// normalize filters ignored lines and replaces the source path the result
// was recorded with.
func normalize(output, source string, ignored []string) string {
	output = filterOutput(output, ignored)
	if source != "" {
		output = strings.ReplaceAll(output, source, sourcePlaceholder)
		output = strings.ReplaceAll(output, filepath.Base(source), sourcePlaceholder)
	}
	return output
}

func compareResults(file string, ref, target *CompileResult, ignored []string) *FileTestResult {
	var diffs strings.Builder
	failed := false

	if ref.Result.ExitCode != target.Result.ExitCode {
		failed = true
		diffs.WriteString(fmt.Sprintf("Exit Code mismatch:\n  - Ref:    %d\n  - Target: %d\n", ref.Result.ExitCode, target.Result.ExitCode))
	}
	if ref.Result.TimedOut != target.Result.TimedOut {
		failed = true
		diffs.WriteString(fmt.Sprintf("Timeout mismatch:\n  - Ref:    %v\n  - Target: %v\n", ref.Result.TimedOut, target.Result.TimedOut))
	}
	if target.Result.UnstableOutput {
		failed = true
		diffs.WriteString("Target output differed between runs.\n")
	}

	refDiags := normalizeLines(ref.Diagnostics, ref.Source, ignored)
	targetDiags := normalizeLines(target.Diagnostics, target.Source, ignored)
	if d := cmp.Diff(refDiags, targetDiags); d != "" {
		failed = true
		diffs.WriteString(fmt.Sprintf("Diagnostics mismatch:\n%s", d))
	} else if refStdout, targetStdout := normalize(ref.Result.Stdout, ref.Source, ignored), normalize(target.Result.Stdout, target.Source, ignored); refStdout != targetStdout {
		failed = true
		diffs.WriteString(fmt.Sprintf("STDOUT mismatch:\n%s", cmp.Diff(refStdout, targetStdout)))
	}

	refStderr := normalize(ref.Result.Stderr, ref.Source, ignored)
	targetStderr := normalize(target.Result.Stderr, target.Source, ignored)
	if refStderr != targetStderr {
		failed = true
		diffs.WriteString(fmt.Sprintf("STDERR mismatch:\n%s", cmp.Diff(refStderr, targetStderr)))
	}

	if failed {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Diagnostics or exit code mismatch", Diff: diffs.String(), Reference: ref, Target: target}
	}
	msg := "Compiled cleanly, as expected"
	if target.Result.ExitCode != 0 {
		msg = fmt.Sprintf("Rejected with %d matching diagnostic(s)", len(target.Diagnostics))
	}
	return &FileTestResult{File: file, Status: "PASS", Message: msg, Reference: ref, Target: target}
}

func normalizeLines(lines []string, source string, ignored []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if n := normalize(l, source, ignored); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	execResult := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	if ctx.Err() == context.DeadlineExceeded {
		execResult.TimedOut = true
		execResult.ExitCode = -1
	} else if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			execResult.ExitCode = exitErr.ExitCode()
		} else {
			execResult.ExitCode = -2
			execResult.Stderr += "\nExecution error: " + err.Error()
		}
	}
	return execResult
}

// compileFile runs the compiler --runs times, keeping the fastest duration
// and flagging output that changes between runs.
func compileFile(compiler string, compilerArgs []string, sourceFile string) *CompileResult {
	allArgs := append(append([]string{}, compilerArgs...), sourceFile)
	ignored := ignoredSubstrings()

	var first Execution
	var durations []time.Duration
	for i := 0; i < *runs; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		res := executeCommand(ctx, compiler, allArgs...)
		cancel()

		if i == 0 {
			first = res
		} else if first.ExitCode != res.ExitCode ||
			filterOutput(first.Stdout, ignored) != filterOutput(res.Stdout, ignored) ||
			filterOutput(first.Stderr, ignored) != filterOutput(res.Stderr, ignored) {
			first.UnstableOutput = true
			break
		}
		if res.TimedOut || res.ExitCode < 0 {
			break
		}
		durations = append(durations, res.Duration)
	}
	if len(durations) > 0 {
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		first.Duration = durations[0]
	}

	return &CompileResult{
		Source:      sourceFile,
		Args:        compilerArgs,
		Result:      first,
		Diagnostics: extractDiagnostics(first.Stdout + first.Stderr),
	}
}

// extractDiagnostics picks out "...:line:col: message" lines. Source echo
// and caret lines never start with a location.
func extractDiagnostics(output string) []string {
	var diags []string
	for _, line := range strings.Split(output, "\n") {
		if isDiagnosticLine(line) {
			diags = append(diags, line)
		}
	}
	return diags
}

func isDiagnosticLine(line string) bool {
	if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
		return false
	}
	// Find ":<digits>:<digits>: " anywhere on the line.
	for i := 0; i < len(line); i++ {
		if line[i] != ':' {
			continue
		}
		j := i + 1
		for j < len(line) && line[j] >= '0' && line[j] <= '9' {
			j++
		}
		if j == i+1 || j >= len(line) || line[j] != ':' {
			continue
		}
		k := j + 1
		for k < len(line) && line[k] >= '0' && line[k] <= '9' {
			k++
		}
		if k > j+1 && k+1 < len(line) && line[k] == ':' && line[k+1] == ' ' {
			return true
		}
	}
	return false
}

func ignoredSubstrings() []string {
	if *ignoreLines == "" {
		return nil
	}
	return strings.Split(*ignoreLines, ",")
}

// filterOutput removes lines containing any of the given substrings
func filterOutput(output string, ignoredSubstrings []string) string {
	if len(ignoredSubstrings) == 0 || output == "" {
		return output
	}
	lines := strings.Split(output, "\n")
	filteredLines := make([]string, 0, len(lines))

	for _, line := range lines {
		ignore := false
		for _, sub := range ignoredSubstrings {
			if sub != "" && strings.Contains(line, sub) {
				ignore = true
				break
			}
		}
		if !ignore {
			filteredLines = append(filteredLines, line)
		}
	}
	return strings.Join(filteredLines, "\n")
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var totalTarget, totalRef time.Duration
	var compared int
	targetName := filepath.Base(*targetCompiler)
	refName := "golden"
	if *refCompiler != "" {
		refName = filepath.Base(*refCompiler)
	}

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}

		if result.Target == nil || result.Reference == nil {
			continue
		}
		compared++
		totalTarget += result.Target.Result.Duration
		totalRef += result.Reference.Result.Duration

		if *verbose {
			targetColor, refColor := cNone, cNone
			if result.Target.Result.Duration < result.Reference.Result.Duration {
				targetColor = cMagenta
			} else if result.Reference.Result.Duration < result.Target.Result.Duration {
				refColor = cMagenta
			}
			fmt.Printf("  [%s: %s%s%s | %s: %s%s%s]\n",
				targetName, targetColor, formatDuration(result.Target.Result.Duration), cNone,
				refName, refColor, formatDuration(result.Reference.Result.Duration), cNone)
			for _, d := range result.Target.Diagnostics {
				fmt.Printf("    %s\n", d)
			}
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))

	if compared > 0 && totalRef > 0 && totalTarget > 0 {
		avgTarget := totalTarget / time.Duration(compared)
		avgRef := totalRef / time.Duration(compared)
		fmt.Println("---")
		if avgTarget > avgRef {
			fmt.Printf("On average, %s%s%s was %s%.2fx%s slower than %s.\n", cBold, targetName, cNone, cRed, float64(avgTarget)/float64(avgRef), cNone, refName)
		} else if avgRef > avgTarget {
			fmt.Printf("On average, %s%s%s was %s%.2fx%s faster than %s.\n", cBold, targetName, cNone, cGreen, float64(avgRef)/float64(avgTarget), cNone, refName)
		}
	}
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func reportPath() string {
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, *outputJSON)
	}
	return *outputJSON
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}

	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
	}
	outputFile := reportPath()
	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, outputFile, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", outputFile)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
