// Command cartctl manages a local cart and wishlist stored in SQLite.
//
//	cartctl [--db path] [--profile name] [--catalog path] <command> [args]
//
// Commands:
//
//	add <product-id>              add one unit of a catalog product
//	remove <product-id>           remove a cart line
//	qty <product-id> <n>          set a line quantity, n < 1 removes it
//	clear                         empty the cart
//	list                          print the cart with totals
//	reset                         delete the profile's cart and wishlist
//	wish add|remove|has <id>      edit or query the wishlist
//	wish list                     print the wishlist
//	checkout summary              print the order summary
//	checkout share <tx-id>        print the verification message and link
//	checkout complete <tx-id>     submit the payment proof and clear the cart
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"

	"github.com/fjod/marketcart/internal/cart"
	"github.com/fjod/marketcart/internal/catalog"
	"github.com/fjod/marketcart/internal/checkout"
	"github.com/fjod/marketcart/internal/logger"
	"github.com/fjod/marketcart/internal/notify"
	"github.com/fjod/marketcart/internal/storage"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, errUsage) {
		if err != errUsage {
			fmt.Fprintln(os.Stderr, "cartctl:", err)
		}
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "cartctl:", err)
		os.Exit(1)
	}
}

type app struct {
	registry *cart.Registry
	manager  *cart.Manager
	products catalog.Source
	checkout *checkout.Service
	profile  string
	out      io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("cartctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "marketcart.db", "SQLite file holding cart and wishlist state")
	profile := fs.String("profile", "default", "client namespace to operate on")
	catalogPath := fs.String("catalog", "catalog.db", "SQLite product catalog")
	payee := fs.String("payee", os.Getenv("PAYEE_UPI_ID"), "UPI id shown in the checkout summary")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Options{Service: "cartctl", Env: "cli", Level: level, Output: stderr})

	store, err := storage.OpenSQLite(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.RunMigrations(); err != nil {
		return err
	}

	products, err := catalog.NewSQLiteCatalog(*catalogPath)
	if err != nil {
		return err
	}
	defer products.Close()
	if err := products.RunMigrations(); err != nil {
		return err
	}

	notifier := stderrNotifier(stderr)
	registry := cart.NewRegistry(store, cart.WithNotifier(notifier), cart.WithLogger(log))
	m := registry.Manager(ctx, *profile)
	if err := m.LoadErr(); err != nil {
		return fmt.Errorf("load profile %q: %w", *profile, err)
	}

	a := &app{
		registry: registry,
		manager:  m,
		products: products,
		checkout: checkout.NewService(checkout.NewLogProofPublisher(log), notifier, *payee),
		profile:  *profile,
		out:      stdout,
	}
	return a.dispatch(ctx, fs.Args())
}

func stderrNotifier(w io.Writer) notify.Notifier {
	return notify.Func(func(_ context.Context, n notify.Notification) {
		prefix := "*"
		if n.Variant == notify.VariantDestructive {
			prefix = "!"
		}
		fmt.Fprintf(w, "%s %s: %s\n", prefix, n.Title, n.Description)
	})
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		if len(rest) != 1 {
			return usage("add <product-id>")
		}
		p, err := a.products.Get(ctx, rest[0])
		if err != nil {
			return err
		}
		if p.Status != "active" {
			return fmt.Errorf("product %s is %s", p.ID, p.Status)
		}
		return a.manager.AddToCart(ctx, p.Descriptor())

	case "remove":
		if len(rest) != 1 {
			return usage("remove <product-id>")
		}
		return a.manager.RemoveFromCart(ctx, rest[0])

	case "qty":
		if len(rest) != 2 {
			return usage("qty <product-id> <quantity>")
		}
		n, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", rest[1])
		}
		return a.manager.UpdateQuantity(ctx, rest[0], n)

	case "clear":
		return a.manager.ClearCart(ctx)

	case "list":
		return a.list()

	case "reset":
		return a.registry.Reset(ctx, a.profile)

	case "wish":
		return a.wish(ctx, rest)

	case "checkout":
		return a.checkoutCmd(ctx, rest)

	default:
		return usage("unknown command " + strconv.Quote(cmd))
	}
}

func (a *app) list() error {
	lines := a.manager.Cart()
	if len(lines) == 0 {
		fmt.Fprintln(a.out, "cart is empty")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tTITLE\tQTY\tPRICE\tTOTAL")
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", l.ProductID, l.Title, l.Quantity, l.UnitPrice.StringFixed(2), l.LineTotal().StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\t%d\t\t%s\n", a.manager.CartCount(), a.manager.CartTotal().StringFixed(2))
	return tw.Flush()
}

func (a *app) wish(ctx context.Context, args []string) error {
	if len(args) == 1 && args[0] == "list" {
		for _, id := range a.manager.Wishlist() {
			fmt.Fprintln(a.out, id)
		}
		return nil
	}
	if len(args) != 2 {
		return usage("wish add|remove|has <product-id> | wish list")
	}

	switch args[0] {
	case "add":
		return a.manager.AddToWishlist(ctx, args[1])
	case "remove":
		return a.manager.RemoveFromWishlist(ctx, args[1])
	case "has":
		fmt.Fprintln(a.out, a.manager.IsInWishlist(args[1]))
		return nil
	default:
		return usage("wish add|remove|has <product-id> | wish list")
	}
}

func (a *app) checkoutCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("checkout summary|share|complete")
	}

	switch args[0] {
	case "summary":
		s, err := a.checkout.Summary(a.manager)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		for _, l := range s.Lines {
			fmt.Fprintf(tw, "%s x%d\t%s\n", l.Title, l.Quantity, l.LineTotal.StringFixed(2))
		}
		fmt.Fprintf(tw, "Subtotal\t%s\n", s.Subtotal.StringFixed(2))
		fmt.Fprintf(tw, "Shipping\tFree\n")
		fmt.Fprintf(tw, "Total\t%s\n", s.Total.StringFixed(2))
		if s.PayeeUPI != "" {
			fmt.Fprintf(tw, "Pay to\t%s\n", s.PayeeUPI)
		}
		return tw.Flush()

	case "share":
		share, err := a.checkout.ShareLink(ctx, a.manager, txArg(args))
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, share.Message)
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, share.URL)
		return nil

	case "complete":
		proof, err := a.checkout.Complete(ctx, a.profile, a.manager, txArg(args))
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, proof.ID)
		return nil

	default:
		return usage("checkout summary|share|complete")
	}
}

func txArg(args []string) string {
	if len(args) < 2 {
		return ""
	}
	return args[1]
}

func usage(msg string) error {
	return fmt.Errorf("%w: %s", errUsage, msg)
}
