package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/upashthiti/upashthiti/internal/config"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Manage registered students",
}

var studentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered students",
	RunE:  runStudentsList,
}

var studentsRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a registered student",
	Long: `Remove a student and their stored embedding. The name is matched
loosely - case and diacritics are ignored, so "jiri novak" removes
"Jiří Novák". Past attendance records are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runStudentsRemove,
}

func init() {
	rootCmd.AddCommand(studentsCmd)
	studentsCmd.AddCommand(studentsListCmd)
	studentsCmd.AddCommand(studentsRemoveCmd)
}

func runStudentsList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	reg := openRegistry(cfg)

	entries := reg.All()
	if len(entries) == 0 {
		fmt.Println("No students registered")
		return nil
	}

	fmt.Printf("%d registered student(s):\n\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %-24s id %-16s registered %s\n",
			e.Name, e.Record.StudentID, e.Record.RegisteredAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runStudentsRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg := config.Load()
	reg := openRegistry(cfg)

	if err := reg.Remove(name); err != nil {
		return fmt.Errorf("removing %s: %w", name, err)
	}

	fmt.Printf("Removed %s (%d student(s) remain)\n", name, reg.Count())
	return nil
}
