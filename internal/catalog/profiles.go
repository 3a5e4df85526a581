package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/pantry/pkg/key"
	"github.com/mesh-intelligence/pantry/pkg/profile"
	"github.com/mesh-intelligence/pantry/pkg/sorter"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// ErrInvalidProduct is returned by the request hooks for malformed input.
var ErrInvalidProduct = errors.New("invalid product")

// now is the clock used to stamp products.
var now = time.Now

// Profiles returns every catalog profile.
func Profiles() []profile.Profile {
	return []profile.Profile{
		stampProfile(),
		addProfile(),
		listProfile(),
		renameProfile(),
		removeProfile(),
		syncProfile(),
	}
}

// NewRegistry returns a registry holding the catalog profiles.
func NewRegistry() *profile.Registry {
	return profile.NewRegistry(Profiles()...)
}

func view(_ context.Context, p *Product) (ProductView, error) {
	return View(p), nil
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating product id: %w", err)
	}
	return id.String(), nil
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	return nil
}

func checkAmounts(price, quantity int) error {
	if price < 0 || quantity < 0 {
		return fmt.Errorf("%w: price and quantity must not be negative", ErrInvalidProduct)
	}
	return nil
}

func productID() key.Key { return key.MustField[*Product]("ID") }

// stampProfile applies to every mutating request and stamps each
// timestamped entity before it is written.
func stampProfile() profile.Profile {
	p := profile.For[mutating]()
	stamp := func(_ context.Context, _ mutating, e timestamped) error {
		e.Touch(now().UTC())
		return nil
	}
	profile.Entity[timestamped](p).
		BeforeCreating(stamp).
		BeforeUpdating(stamp)
	return p
}

func addProfile() profile.Profile {
	p := profile.For[AddProduct]().AddRequestHookFunc(func(_ context.Context, r AddProduct) error {
		if err := checkName(r.Name); err != nil {
			return err
		}
		return checkAmounts(r.Price, r.Quantity)
	})
	ep := profile.Entity[*Product](p).CreateEntityWith(func(_ context.Context, r AddProduct) (*Product, error) {
		id, err := newID()
		if err != nil {
			return nil, err
		}
		return &Product{
			ID:       id,
			Name:     strings.TrimSpace(r.Name),
			Category: r.Category,
			Price:    r.Price,
			Quantity: r.Quantity,
		}, nil
	})
	profile.ResultWith(ep, view)
	return p
}

var (
	byName     = sorter.By("name", func(p *Product) string { return strings.ToLower(p.Name) })
	byCategory = sorter.By("category", func(p *Product) string { return strings.ToLower(p.Category) })
	byPrice    = sorter.By("price", func(p *Product) int { return p.Price })
	byQuantity = sorter.By("quantity", func(p *Product) int { return p.Quantity })
)

func inCategory(category string, p *Product) bool {
	return strings.EqualFold(p.Category, category)
}

func listProfile() profile.Profile {
	p := profile.For[ListProducts]()
	ep := profile.Entity[*Product](p).
		FilterWhen(
			func(r ListProducts) bool { return r.Category != "" },
			func(r ListProducts, p *Product) bool { return inCategory(r.Category, p) },
		).
		SortWith(sorter.TableOn("Sort", "Direction").
			Column("name", byName).
			Column("category", byCategory).
			Column("price", byPrice).
			Column("quantity", byQuantity).
			Default(byCategory, byName)).
		ConfigureOptions(types.Options{UseProjection: types.Bool(true)}).
		ConfigureErrors(types.ErrorConfig{FailedToFindInGetAllIsError: types.Bool(false)})
	profile.ResultWith(ep, view)
	return p
}

func renameProfile() profile.Profile {
	p := profile.For[RenameProduct]().AddRequestHookFunc(func(_ context.Context, r RenameProduct) error {
		return checkName(r.Name)
	})
	ep := profile.Entity[*Product](p).
		UseKeys(key.MustField[RenameProduct]("ID"), productID()).
		UpdateEntityWith(func(_ context.Context, r RenameProduct, p *Product) (*Product, error) {
			p.Name = strings.TrimSpace(r.Name)
			return p, nil
		})
	profile.ResultWith(ep, view)
	return p
}

func removeProfile() profile.Profile {
	p := profile.For[RemoveProduct]()
	ep := profile.Entity[*Product](p).UseKeys(key.MustField[RemoveProduct]("ID"), productID())
	profile.ResultWith(ep, view)
	return p
}

func syncProfile() profile.Profile {
	p := profile.ForBulk[SyncProducts, ProductRecord]()
	p.AddItemHookFunc(func(_ context.Context, r SyncProducts, rec ProductRecord) (ProductRecord, error) {
		if err := checkName(rec.Name); err != nil {
			return rec, err
		}
		if err := checkAmounts(rec.Price, rec.Quantity); err != nil {
			return rec, err
		}
		rec.Name = strings.TrimSpace(rec.Name)
		if rec.Category == "" {
			rec.Category = r.Category
		}
		if rec.ID == "" {
			id, err := newID()
			if err != nil {
				return rec, err
			}
			rec.ID = id
		}
		return rec, nil
	})
	profile.BulkEntity[*Product](p).
		UseKeys(key.MustField[ProductRecord]("ID"), productID()).
		CreateEntityWith(func(_ context.Context, _ SyncProducts, rec ProductRecord) (*Product, error) {
			return &Product{ID: rec.ID, Name: rec.Name, Category: rec.Category, Price: rec.Price, Quantity: rec.Quantity}, nil
		}).
		UpdateEntityWith(func(_ context.Context, _ SyncProducts, rec ProductRecord, p *Product) (*Product, error) {
			p.Name, p.Category, p.Price, p.Quantity = rec.Name, rec.Category, rec.Price, rec.Quantity
			return p, nil
		})
	ep := profile.Entity[*Product](p.RequestProfile).FilterWhen(
		func(r SyncProducts) bool { return r.Category != "" },
		func(r SyncProducts, p *Product) bool { return inCategory(r.Category, p) },
	)
	profile.ResultWith(ep, view)
	return p
}
