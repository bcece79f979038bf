// Command hearthvm runs Java class files and JARs on hearthvm's embeddable
// virtual machine, wiring the CLI's own classpath/filesystem
// Platform implementation (platform.go) in for the embeddable core's
// caller-supplied Platform.
package main

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hearthvm/hearthvm/pkg/runtime"
	"github.com/hearthvm/hearthvm/pkg/vm"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "hearthvm",
		Short: "An embeddable Java bytecode virtual machine",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(runCmd(), jarCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVM(roots []string, bootstrapRoots []string) *vm.VM {
	cp := newClasspath(roots)
	m := vm.NewVM(newHostPlatform(cp))
	if verbose {
		m.SetLogLevel(logrus.DebugLevel)
	}

	for _, root := range bootstrapRoots {
		m.AddClassSource(newClasspath([]string{root}).ClassSource())
	}
	m.AddClassSource(cp.ClassSource())
	return m
}

func runCmd() *cobra.Command {
	var classpathFlag, bootstrapFlag []string
	cmd := &cobra.Command{
		Use:   "run <main-class>",
		Short: "Resolve and execute a class's public static void main(String[])",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			className := strings.ReplaceAll(args[0], ".", "/")
			m := newVM(classpathFlag, bootstrapFlag)
			if err := runtime.Register(m); err != nil {
				return fmt.Errorf("installing shim library: %w", err)
			}
			if err := m.Execute(className); err != nil {
				return fmt.Errorf("executing %s: %w", args[0], err)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&classpathFlag, "classpath", "c", []string{"."}, "directories and jars to search for classes")
	cmd.Flags().StringSliceVar(&bootstrapFlag, "bootstrap", nil, "directories and jars consulted before --classpath")
	return cmd
}

func jarCmd() *cobra.Command {
	var classpathFlag, bootstrapFlag []string
	cmd := &cobra.Command{
		Use:   "jar <file.jar>",
		Short: "Run a JAR's Main-Class manifest entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jarPath := args[0]
			mainClass, err := readMainClass(jarPath)
			if err != nil {
				return err
			}
			roots := append([]string{jarPath}, classpathFlag...)
			m := newVM(roots, bootstrapFlag)
			if err := runtime.Register(m); err != nil {
				return fmt.Errorf("installing shim library: %w", err)
			}
			if err := m.Execute(mainClass); err != nil {
				return fmt.Errorf("executing %s: %w", mainClass, err)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&classpathFlag, "classpath", "c", nil, "additional directories and jars to search")
	cmd.Flags().StringSliceVar(&bootstrapFlag, "bootstrap", nil, "directories and jars consulted before the jar and --classpath")
	return cmd
}

// readMainClass opens jarPath directly (independent of the VM) to read its
// META-INF/MANIFEST.MF Main-Class attribute, the same lookup
// runtime.jar.go's Manifest/Attributes shims expose to bytecode, needed here
// before a VM even exists to know what to execute.
func readMainClass(jarPath string) (string, error) {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", jarPath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "META-INF/MANIFEST.MF" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		buf, err := io.ReadAll(rc)
		if err != nil {
			return "", err
		}
		for _, line := range strings.Split(strings.ReplaceAll(string(buf), "\r\n", "\n"), "\n") {
			if rest, ok := strings.CutPrefix(line, "Main-Class: "); ok {
				return strings.ReplaceAll(strings.TrimSpace(rest), ".", "/"), nil
			}
		}
	}
	return "", fmt.Errorf("%s: no Main-Class attribute in META-INF/MANIFEST.MF", jarPath)
}
