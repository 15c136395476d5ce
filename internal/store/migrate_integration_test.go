// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

//go:build integration

package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/authgate/authgate/internal/store"
)

// Specs share one database, so they run in declaration order.
var _ = Describe("Store", Ordered, func() {
	Describe("Migrator", Ordered, func() {
		var migrator *store.Migrator

		BeforeAll(func() {
			var err error
			migrator, err = store.NewMigrator(connStr)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() { Expect(migrator.Close()).To(Succeed()) })
		})

		It("starts at version 0 with everything pending", func() {
			st, err := migrator.Status()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Version).To(BeZero())
			Expect(st.Dirty).To(BeFalse())
			Expect(st.Pending).To(Equal([]uint{1, 2}))
		})

		It("applies every migration", func() {
			Expect(migrator.Up()).To(Succeed())

			st, err := migrator.Status()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Version).To(Equal(uint(2)))
			Expect(st.UpToDate()).To(BeTrue())

			applied, err := migrator.AppliedMigrations()
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(Equal([]uint{1, 2}))
		})

		It("is idempotent", func() {
			Expect(migrator.Up()).To(Succeed())
		})

		It("steps back and forward", func() {
			Expect(migrator.Steps(-1)).To(Succeed())
			version, _, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(uint(1)))

			Expect(migrator.Steps(1)).To(Succeed())
			version, _, err = migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(uint(2)))
		})

		It("rolls everything back with Down", func() {
			Expect(migrator.Down()).To(Succeed())
			version, dirty, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(BeZero())
			Expect(dirty).To(BeFalse())
		})

		It("forces a version without running migrations", func() {
			Expect(migrator.Up()).To(Succeed())
			Expect(migrator.Force(1)).To(Succeed())

			version, dirty, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(uint(1)))
			Expect(dirty).To(BeFalse())

			Expect(migrator.Up()).To(Succeed())
		})
	})

	Describe("Connect", func() {
		It("opens a pool that reports ready", func(ctx SpecContext) {
			pool, err := store.Connect(ctx, store.PoolConfig{URL: connStr, MaxConns: 4}, nil)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(pool.Close)

			Expect(store.Ready(pool)()).To(BeTrue())
			Expect(pool.Config().MaxConns).To(Equal(int32(4)))
		})

		It("creates the case-insensitive email index", func(ctx SpecContext) {
			m, err := store.NewMigrator(connStr)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Up()).To(Succeed())
			Expect(m.Close()).To(Succeed())

			pool, err := store.Connect(ctx, store.PoolConfig{URL: connStr}, nil)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(pool.Close)

			var exists bool
			err = pool.QueryRow(context.Background(),
				`SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'users_email_lower_idx')`).Scan(&exists)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
		})
	})
})
