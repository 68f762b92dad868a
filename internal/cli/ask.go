package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

var (
	askK    int
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question grounded in the indexed documentation",
	Long: `Retrieve the most relevant chunks for the question and synthesize an
answer from them, with source attribution.

Examples:
  docrag ask "how do I authenticate?"
  docrag ask -k 10 "what are the rate limits?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "emit the raw JSON envelope")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	retrieve, err := newRetrieveUseCase(cfg)
	if err != nil {
		return err
	}
	generator, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	uc := usecase.NewAnswerUseCase(retrieve, generator, log)

	k := askK
	if k == 0 {
		k = retrieve.DefaultK()
	}

	envelope, err := uc.Ask(cmd.Context(), question, k)
	if err != nil {
		return emitError(domain.Classify(err, log))
	}

	if askJSON {
		return emitJSON(envelope)
	}

	fmt.Println(envelope.Answer)
	if len(envelope.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, url := range envelope.Sources {
			fmt.Printf("  - %s\n", url)
		}
	}
	return nil
}
