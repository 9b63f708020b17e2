package catalog_test

import (
	"io"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stempede/stempede-api/internal/catalog"
	catalogpg "github.com/stempede/stempede-api/internal/catalog/postgres"
	catalogmodel "github.com/stempede/stempede-api/internal/core/datamodel/catalog"
)

func TestCatalog(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Catalog Module Suite")
}

var _ = Describe("Catalog Service", func() {
	var (
		db      *gorm.DB
		service *catalog.Service
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(
			&catalogmodel.Product{},
			&catalogmodel.Lab{},
			&catalogmodel.Subcategory{},
		)
		Expect(err).NotTo(HaveOccurred())

		service = catalog.NewService(catalogpg.NewCatalogRepository(db), slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).NotTo(HaveOccurred())
	})

	seedLab := func(name string) *catalogmodel.Lab {
		l := &catalogmodel.Lab{LabName: name}
		Expect(db.Create(l).Error).NotTo(HaveOccurred())
		return l
	}

	seedSubcategory := func(name string) *catalogmodel.Subcategory {
		s := &catalogmodel.Subcategory{SubcategoryName: name}
		Expect(db.Create(s).Error).NotTo(HaveOccurred())
		return s
	}

	seedProduct := func(name string, subID int64, labID *int64, active bool) *catalogmodel.Product {
		p := &catalogmodel.Product{
			ProductName:   name,
			PriceCents:    4999,
			StockQuantity: 10,
			SubcategoryID: subID,
			LabID:         labID,
			IsActive:      active,
		}
		Expect(db.Create(p).Error).NotTo(HaveOccurred())
		return p
	}

	Describe("GetProducts", func() {
		It("lists active products with lab and subcategory names resolved", func() {
			lab := seedLab("Chemistry Lab")
			sub := seedSubcategory("Kits")
			seedProduct("Chemistry Kit", sub.SubcategoryID, &lab.LabID, true)
			seedProduct("Hidden Kit", sub.SubcategoryID, nil, false)

			page, err := service.GetProducts(catalog.QueryParams{})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(1)))
			Expect(page.Items).To(HaveLen(1))
			Expect(page.Items[0].LabName).To(Equal("Chemistry Lab"))
			Expect(page.Items[0].SubcategoryName).To(Equal("Kits"))
		})

		It("filters by case-insensitive name search", func() {
			sub := seedSubcategory("Kits")
			seedProduct("Chemistry Kit", sub.SubcategoryID, nil, true)
			seedProduct("Robotics Kit", sub.SubcategoryID, nil, true)

			page, err := service.GetProducts(catalog.QueryParams{Search: "chem"})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items).To(HaveLen(1))
			Expect(page.Items[0].Name).To(Equal("Chemistry Kit"))
		})
	})

	Describe("labs", func() {
		It("lists labs sorted by name and fetches one by id", func() {
			seedLab("Physics Lab")
			chem := seedLab("Chemistry Lab")

			labs, err := service.GetLabs()
			Expect(err).NotTo(HaveOccurred())
			Expect(labs).To(HaveLen(2))
			Expect(labs[0].Name).To(Equal("Chemistry Lab"))

			got, err := service.GetLabByID(chem.LabID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Chemistry Lab"))
		})

		It("returns not found for an unknown lab", func() {
			_, err := service.GetLabByID(999)
			Expect(err).To(MatchError(catalog.ErrLabNotFound))
		})
	})

	Describe("subcategories", func() {
		It("lists subcategories sorted by name and fetches one by id", func() {
			seedSubcategory("Robotics")
			kits := seedSubcategory("Kits")

			subs, err := service.GetSubcategories()
			Expect(err).NotTo(HaveOccurred())
			Expect(subs).To(HaveLen(2))
			Expect(subs[0].Name).To(Equal("Kits"))

			got, err := service.GetSubcategoryByID(kits.SubcategoryID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Kits"))
		})

		It("returns not found for an unknown subcategory", func() {
			_, err := service.GetSubcategoryByID(999)
			Expect(err).To(MatchError(catalog.ErrSubcategoryNotFound))
		})
	})
})
