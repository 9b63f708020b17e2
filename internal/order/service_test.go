package order_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stempede/stempede-api/internal/core/clock"
	catalogmodel "github.com/stempede/stempede-api/internal/core/datamodel/catalog"
	ordermodel "github.com/stempede/stempede-api/internal/core/datamodel/order"
	"github.com/stempede/stempede-api/internal/order"
	orderpg "github.com/stempede/stempede-api/internal/order/postgres"
)

func TestOrder(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Order Module Suite")
}

var _ = Describe("Order Service", func() {
	var (
		db      *gorm.DB
		clk     *clock.Fixed
		service *order.Service
	)

	const userID int64 = 7

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(
			&catalogmodel.Product{},
			&ordermodel.Order{},
			&ordermodel.OrderDetail{},
			&ordermodel.Delivery{},
		)
		Expect(err).NotTo(HaveOccurred())

		clk = clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
		service = order.NewService(orderpg.NewOrderRepository(db), clk, slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).NotTo(HaveOccurred())
	})

	seedOrder := func(owner int64, placedAt time.Time, total int64) *ordermodel.Order {
		o := &ordermodel.Order{UserID: owner, OrderDate: placedAt, TotalCents: total}
		Expect(db.Create(o).Error).NotTo(HaveOccurred())
		Expect(db.Create(&ordermodel.Delivery{OrderID: o.OrderID, Status: ordermodel.DeliveryPending}).Error).NotTo(HaveOccurred())
		return o
	}

	seedLine := func(orderID int64, productName string, qty int, priceCents int64) {
		p := &catalogmodel.Product{ProductName: productName, PriceCents: priceCents, StockQuantity: 10, SubcategoryID: 1, IsActive: true}
		Expect(db.Create(p).Error).NotTo(HaveOccurred())
		Expect(db.Create(&ordermodel.OrderDetail{OrderID: orderID, ProductID: p.ProductID, Quantity: qty, PriceCents: priceCents}).Error).NotTo(HaveOccurred())
	}

	Describe("ListForUser", func() {
		It("returns only the user's orders, newest first, with delivery status", func() {
			older := seedOrder(userID, clk.Now().Add(-48*time.Hour), 1000)
			newer := seedOrder(userID, clk.Now().Add(-time.Hour), 2500)
			seedOrder(99, clk.Now(), 9999)

			orders, err := service.ListForUser(userID, 20, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(orders).To(HaveLen(2))
			Expect(orders[0].ID).To(Equal(newer.OrderID))
			Expect(orders[1].ID).To(Equal(older.OrderID))
			Expect(orders[0].DeliveryStatus).To(Equal(ordermodel.DeliveryPending))
		})

		It("falls back to the default page size for out-of-range limits", func() {
			for i := 0; i < 25; i++ {
				seedOrder(userID, clk.Now().Add(-time.Duration(i)*time.Hour), 100)
			}

			orders, err := service.ListForUser(userID, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(orders).To(HaveLen(20))

			orders, err = service.ListForUser(userID, 500, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(orders).To(HaveLen(20))
		})
	})

	Describe("GetForUser", func() {
		It("returns the order with lines and resolved product names", func() {
			o := seedOrder(userID, clk.Now(), 10498)
			seedLine(o.OrderID, "Chemistry Kit", 2, 4999)
			seedLine(o.OrderID, "Safety Goggles", 1, 500)

			got, err := service.GetForUser(userID, o.OrderID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.TotalCents).To(Equal(int64(10498)))
			Expect(got.Lines).To(HaveLen(2))
			Expect(got.Lines[0].ProductName).To(Equal("Chemistry Kit"))
			Expect(got.Lines[0].Quantity).To(Equal(2))
			Expect(got.Lines[1].ProductName).To(Equal("Safety Goggles"))
		})

		It("treats someone else's order as not found", func() {
			o := seedOrder(99, clk.Now(), 1000)

			_, err := service.GetForUser(userID, o.OrderID)
			Expect(err).To(MatchError(order.ErrNotFound))
		})

		It("returns not found for unknown order ids", func() {
			_, err := service.GetForUser(userID, 12345)
			Expect(err).To(MatchError(order.ErrNotFound))
		})
	})

	Describe("Get", func() {
		It("returns any user's order for staff views", func() {
			o := seedOrder(99, clk.Now(), 1000)

			got, err := service.Get(o.OrderID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.UserID).To(Equal(int64(99)))
		})
	})

	Describe("UpdateDeliveryStatus", func() {
		It("moves the delivery through its states and stamps delivered time", func() {
			o := seedOrder(userID, clk.Now(), 1000)

			Expect(service.UpdateDeliveryStatus(o.OrderID, ordermodel.DeliveryShipping)).To(Succeed())

			got, err := service.Get(o.OrderID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.DeliveryStatus).To(Equal(ordermodel.DeliveryShipping))
			Expect(got.DeliveredAt).To(BeNil())

			clk.Advance(24 * time.Hour)
			Expect(service.UpdateDeliveryStatus(o.OrderID, ordermodel.DeliveryDelivered)).To(Succeed())

			got, err = service.Get(o.OrderID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.DeliveryStatus).To(Equal(ordermodel.DeliveryDelivered))
			Expect(got.DeliveredAt).NotTo(BeNil())
			Expect(*got.DeliveredAt).To(BeTemporally("==", clk.Now()))
		})

		It("rejects statuses outside the allowed set", func() {
			o := seedOrder(userID, clk.Now(), 1000)

			err := service.UpdateDeliveryStatus(o.OrderID, "Teleported")
			Expect(err).To(MatchError(order.ErrInvalidStatus))
		})

		It("returns not found when the order has no delivery record", func() {
			err := service.UpdateDeliveryStatus(424242, ordermodel.DeliveryShipping)
			Expect(err).To(MatchError(order.ErrNotFound))
		})
	})
})
